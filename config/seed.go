package config

import (
	"go-ml.dev/pkg/tsdl/fu"
	"golang.org/x/xerrors"
)

/*
Seed is the seed_everything value: an integer, or true to draw a fresh one.
A drawn seed is recorded, so the stored configuration replays the run.
*/
type Seed struct {
	Value int64
	Set   bool
}

func (s *Seed) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case int:
		*s = Seed{Value: int64(x), Set: true}
	case int64:
		*s = Seed{Value: x, Set: true}
	case bool, nil:
		*s = Seed{}
	default:
		return xerrors.Errorf("seed_everything must be an integer or true, got %v", v)
	}
	return nil
}

func (s Seed) MarshalYAML() (interface{}, error) {
	if !s.Set {
		return true, nil
	}
	return s.Value, nil
}

/*
Resolve draws a seed if none is set
*/
func (s *Seed) Resolve() int64 {
	if !s.Set {
		*s = Seed{Value: fu.NewSeed(), Set: true}
	}
	return s.Value
}
