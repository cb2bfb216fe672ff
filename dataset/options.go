/*
Package dataset loads tabular time series, normalizes them with frozen
per-column statistics and serves fixed-length input/target windows.
*/
package dataset

import (
	"path/filepath"
	"strings"
)

/*
Options controls loading and windowing (the data_kwargs configuration section)
*/
type Options struct {
	Scaler         string   `yaml:"scaler" validate:"omitempty,oneof=standardize standard minmax min-max none"`
	SequenceLength int      `yaml:"sequence_length" validate:"gt=0"`
	FutureSteps    int      `yaml:"future_steps" validate:"gt=0"`
	Columns        []string `yaml:"columns,omitempty"` // feature columns to keep, all by default
	Targets        []string `yaml:"targets,omitempty"` // columns predicted, all features by default
	Delimiter      string   `yaml:"delimiter,omitempty" validate:"omitempty,len=1"`
	HasHeader      *bool    `yaml:"has_header,omitempty"`
	SkipRows       int      `yaml:"skip_rows,omitempty" validate:"gte=0"`
	Sheet          string   `yaml:"sheet,omitempty"`
	StrictScale    bool     `yaml:"strict_scale,omitempty"`

	// Float32 rounds loaded values to float32, it follows trainer precision
	Float32 bool `yaml:"-"`
}

func (o Options) header() bool {
	return o.HasHeader == nil || *o.HasHeader
}

func (o Options) delimiter(path string) rune {
	if o.Delimiter != "" {
		return []rune(o.Delimiter)[0]
	}
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

/*
LoaderOptions controls batching (the loader_kwargs configuration section).
PinMemory and PersistentWorkers are accepted for compatibility and have no effect.
*/
type LoaderOptions struct {
	Shuffle           bool `yaml:"shuffle"`
	NumWorkers        int  `yaml:"num_workers" validate:"gte=-1"`
	PinMemory         bool `yaml:"pin_memory"`
	PersistentWorkers bool `yaml:"persistent_workers"`
	DropLast          bool `yaml:"drop_last"`
	PrefetchFactor    int  `yaml:"prefetch_factor,omitempty" validate:"gte=0"`
}

const DefaultPrefetchFactor = 2
