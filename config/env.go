package config

import (
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/xerrors"
)

const EnvPrefix = "TSDL"

/*
Env holds overrides taken from TSDL_* environment variables
*/
type Env struct {
	RootDir    string `envconfig:"ROOT_DIR"`
	MaxEpochs  int    `envconfig:"MAX_EPOCHS"`
	NumWorkers *int   `envconfig:"NUM_WORKERS"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console"`
}

func LoadEnv() (*Env, error) {
	e := &Env{}
	if err := envconfig.Process(EnvPrefix, e); err != nil {
		return nil, &Error{Key: "env", Err: xerrors.Errorf("environment: %w", err)}
	}
	return e, nil
}

func (e *Env) apply(c *Config) {
	if e.RootDir != "" {
		c.Trainer.DefaultRootDir = e.RootDir
	}
	if e.MaxEpochs > 0 {
		c.Trainer.MaxEpochs = e.MaxEpochs
	}
	if e.NumWorkers != nil {
		c.Data.LoaderKwargs.NumWorkers = *e.NumWorkers
	}
}
