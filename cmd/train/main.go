package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go-ml.dev/pkg/tsdl/cli"
	"go-ml.dev/pkg/tsdl/config"
	"go-ml.dev/pkg/tsdl/zlog"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML run configuration")
	envFile := flag.String("env", ".env", "optional file with TSDL_* variables")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -config config.yaml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *configPath == "" && flag.NArg() == 1 {
		*configPath = flag.Arg(0)
	}
	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, "train:", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	if err = zlog.Setup(env.LogLevel, env.LogFormat); err != nil {
		return err
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := cli.Fit(ctx, configPath)
	if err != nil {
		return err
	}
	cli.WriteSummary(os.Stdout, res)
	return nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
