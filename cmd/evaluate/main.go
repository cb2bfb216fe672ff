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
	runDir := flag.String("run", "", "run directory, e.g. runs/ConvLSTM/07032024_150405")
	checkpoint := flag.String("checkpoint", cli.BestCheckpoint, "checkpoint to restore: best or last")
	subset := flag.String("subset", cli.ValidationSubset, "windows to evaluate: validation or all")
	predictions := flag.String("predictions", "", "optional .csv or .xlsx file for predictions in original units")
	flag.Parse()
	if *runDir == "" && flag.NArg() == 1 {
		*runDir = flag.Arg(0)
	}
	if *runDir == "" {
		flag.Usage()
		os.Exit(2)
	}
	opts := cli.EvalOptions{Checkpoint: *checkpoint, Subset: *subset, Predictions: *predictions}
	if err := run(*runDir, opts); err != nil {
		fmt.Fprintln(os.Stderr, "evaluate:", err)
		os.Exit(1)
	}
}

func run(runDir string, opts cli.EvalOptions) error {
	if _, err := os.Stat(".env"); err == nil {
		if err = godotenv.Load(); err != nil {
			return err
		}
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
	e, err := cli.Evaluate(ctx, runDir, opts)
	if err != nil {
		return err
	}
	cli.WriteEvaluation(os.Stdout, e)
	return nil
}
