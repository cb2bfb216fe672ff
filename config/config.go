/*
Package config reads the YAML run configuration, applies TSDL_* environment
overrides, fills defaults and validates it before anything is built.
*/
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"go-ml.dev/pkg/tsdl/dataset"
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/model"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

/*
Config is the complete run configuration
*/
type Config struct {
	SeedEverything Seed          `yaml:"seed_everything"`
	Trainer        TrainerConfig `yaml:"trainer"`
	Model          ModelConfig   `yaml:"model"`
	Data           DataConfig    `yaml:"data"`
}

type TrainerConfig struct {
	DefaultRootDir      string         `yaml:"default_root_dir"`
	MaxEpochs           int            `yaml:"max_epochs" validate:"gte=0"`
	MinEpochs           int            `yaml:"min_epochs" validate:"gte=0"`
	Precision           string         `yaml:"precision" validate:"omitempty,oneof=64 64-true 32 32-true"`
	GradientClipVal     float64        `yaml:"gradient_clip_val" validate:"gte=0"`
	LogEveryNSteps      int            `yaml:"log_every_n_steps" validate:"gte=0"`
	EnableCheckpointing *bool          `yaml:"enable_checkpointing"`
	Trace               bool           `yaml:"trace"`
	Callbacks           []CallbackSpec `yaml:"callbacks,omitempty" validate:"dive"`
}

type ModelConfig struct {
	ClassPath string      `yaml:"class_path" validate:"required"`
	InitArgs  model.Hyper `yaml:"init_args"`
}

type DataConfig struct {
	BatchSize    int                   `yaml:"batch_size" validate:"gt=0"`
	Files        []string              `yaml:"files" validate:"min=1,dive,required"`
	ValSplit     float64               `yaml:"val_split" validate:"gte=0,lt=1"`
	SplitShuffle bool                  `yaml:"split_shuffle"`
	DataKwargs   dataset.Options       `yaml:"data_kwargs"`
	LoaderKwargs dataset.LoaderOptions `yaml:"loader_kwargs"`
}

const (
	DefaultRootDir   = "runs"
	DefaultPrecision = "64"
)

/*
Float32 reports whether the trainer precision selects float32 arithmetic
*/
func (t TrainerConfig) Float32() bool {
	return t.Precision == "32" || t.Precision == "32-true"
}

func (t TrainerConfig) Checkpointing() bool {
	return t.EnableCheckpointing == nil || *t.EnableCheckpointing
}

/*
Load reads the configuration file, applies environment overrides
and resolves it
*/
func Load(path string) (*Config, error) {
	c, err := Read(path)
	if err != nil {
		return nil, err
	}
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	env.apply(c)
	if err = c.Resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

/*
Read parses the configuration file strictly, unknown keys are errors
*/
func Read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Err: xerrors.Errorf("read %s: %w", path, err)}
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, &Error{Err: err}
	}
	return c, nil
}

/*
Resolve fills defaults, links model shape to data options and validates.
The seed is drawn here when the configuration leaves it open.
*/
func (c *Config) Resolve() error {
	c.SeedEverything.Resolve()
	t := &c.Trainer
	if t.DefaultRootDir == "" {
		t.DefaultRootDir = DefaultRootDir
	}
	t.MaxEpochs = fu.Fnzi(t.MaxEpochs, model.DefaultMaxEpochs)
	t.LogEveryNSteps = fu.Fnzi(t.LogEveryNSteps, model.DefaultLogEveryNSteps)
	if t.Precision == "" {
		t.Precision = DefaultPrecision
	}
	if c.Data.LoaderKwargs.PrefetchFactor == 0 {
		c.Data.LoaderKwargs.PrefetchFactor = dataset.DefaultPrefetchFactor
	}
	if err := Validate(c, ""); err != nil {
		return err
	}
	if t.MinEpochs > t.MaxEpochs {
		return &Error{Key: "trainer.min_epochs", Err: xerrors.Errorf(
			"min_epochs %d exceeds max_epochs %d", t.MinEpochs, t.MaxEpochs)}
	}
	if _, err := dataset.ParseScaler(c.Data.DataKwargs.Scaler); err != nil {
		return &Error{Key: "data.data_kwargs.scaler", Err: err}
	}
	c.Data.DataKwargs.Float32 = t.Float32()

	h := &c.Model.InitArgs
	d := c.Data.DataKwargs
	if err := link(&h.SequenceLength, d.SequenceLength, "model.init_args.sequence_length"); err != nil {
		return err
	}
	if err := link(&h.FutureSteps, d.FutureSteps, "model.init_args.future_steps"); err != nil {
		return err
	}
	if _, err := c.Callbacks(); err != nil {
		return err
	}
	return nil
}

/*
Link binds model feature counts to the loaded data,
unset values take the data ones and explicit values must agree
*/
func (c *Config) Link(inFeatures, outFeatures int) error {
	h := &c.Model.InitArgs
	if err := link(&h.InFeatures, inFeatures, "model.init_args.in_features"); err != nil {
		return err
	}
	return link(&h.OutFeatures, outFeatures, "model.init_args.out_features")
}

func link(v *int, data int, key string) error {
	if *v == 0 {
		*v = data
		return nil
	}
	if *v != data {
		return &Error{Key: key, Err: xerrors.Errorf("is %d but data provides %d", *v, data)}
	}
	return nil
}

/*
AbsFiles makes data file paths absolute, so the stored configuration
stays usable from any working directory
*/
func (c *Config) AbsFiles() error {
	for i, f := range c.Data.Files {
		a, err := filepath.Abs(f)
		if err != nil {
			return &Error{Key: "data.files", Err: err}
		}
		c.Data.Files[i] = a
	}
	return nil
}

/*
Save writes the resolved configuration
*/
func (c *Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return xerrors.Errorf("encode config: %w", err)
	}
	return fu.Output(path).WriteWhole(func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(b))
		return err
	})
}
