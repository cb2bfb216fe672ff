package config

import (
	"fmt"

	"go-ml.dev/pkg/tsdl/model"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

/*
CallbackSpec names a callback class and its arguments
*/
type CallbackSpec struct {
	ClassPath string                 `yaml:"class_path" validate:"required"`
	InitArgs  map[string]interface{} `yaml:"init_args,omitempty"`
}

/*
Decode strictly decodes init_args into v
*/
func (s CallbackSpec) Decode(v interface{}) error {
	b, err := yaml.Marshal(s.InitArgs)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(b, v)
}

/*
Callbacks builds configured callbacks in order. A ModelCheckpoint with
default arguments is appended when checkpointing is enabled and none is configured.
Checkpoint directories are left empty to be bound to the run directory.
*/
func (c *Config) Callbacks() ([]model.Callback, error) {
	var r []model.Callback
	hasCheckpoint := false
	for i, s := range c.Trainer.Callbacks {
		key := fmt.Sprintf("trainer.callbacks[%d]", i)
		var cb model.Callback
		switch model.ClassName(s.ClassPath) {
		case "EarlyStopping":
			cb = &model.EarlyStopping{Monitor: model.ValLossMetric, Mode: model.Min, Patience: model.DefaultPatience}
		case "ModelCheckpoint":
			if !c.Trainer.Checkpointing() {
				return nil, &Error{Key: key + ".class_path",
					Err: xerrors.New("ModelCheckpoint requires enable_checkpointing")}
			}
			cb = &model.ModelCheckpoint{Monitor: model.ValLossMetric, Mode: model.Min, Seed: c.SeedEverything.Value}
			hasCheckpoint = true
		default:
			return nil, &Error{Key: key + ".class_path",
				Err: xerrors.Errorf("unknown callback %q, known: EarlyStopping, ModelCheckpoint", s.ClassPath)}
		}
		if err := s.Decode(cb); err != nil {
			return nil, &Error{Key: key + ".init_args", Err: err}
		}
		if err := Validate(cb, key+".init_args"); err != nil {
			return nil, err
		}
		r = append(r, cb)
	}
	if !hasCheckpoint && c.Trainer.Checkpointing() {
		r = append(r, &model.ModelCheckpoint{
			Monitor: model.ValLossMetric, Mode: model.Min, SaveLast: true, Seed: c.SeedEverything.Value})
	}
	return r, nil
}
