package dataset

import (
	"strings"

	"go-ml.dev/pkg/tsdl/zlog"
	"golang.org/x/xerrors"
)

/*
Window is one supervised sample: Input holds SequenceLength rows starting
at Start and Target holds the FutureSteps rows immediately following them.
Both are read-only views on the normalized series.
*/
type Window struct {
	Start  int
	Input  [][]float64
	Target [][]float64
}

/*
Dataset is a normalized series served as overlapping windows with stride 1
*/
type Dataset struct {
	Files          []string
	Columns        []string
	Rows           [][]float64 // normalized rows
	Scaling        *ScalingParameters
	SequenceLength int
	FutureSteps    int
	targets        []int // projected target columns, nil for all
}

/*
Load reads files, fits scaling parameters once over the concatenated
series and returns its windows
*/
func Load(paths []string, opts Options) (*Dataset, error) {
	s, err := ReadSeries(paths, opts)
	if err != nil {
		return nil, err
	}
	kind, err := ParseScaler(opts.Scaler)
	if err != nil {
		return nil, err
	}
	params, err := FitScaler(kind, s)
	if err != nil {
		var deg *DegenerateScaleError
		if !xerrors.As(err, &deg) || opts.StrictScale {
			return nil, err
		}
		zlog.Warning("degenerate columns left unscaled", "scaler", kind, "columns", deg.Columns)
	}
	return New(s, params, paths, opts)
}

/*
LoadWithScaler reads files and applies previously fitted parameters without refitting
*/
func LoadWithScaler(paths []string, opts Options, params *ScalingParameters) (*Dataset, error) {
	s, err := ReadSeries(paths, opts)
	if err != nil {
		return nil, err
	}
	return New(s, params, paths, opts)
}

/*
New normalizes the series with params and prepares windowing
*/
func New(s *Series, params *ScalingParameters, paths []string, opts Options) (*Dataset, error) {
	file := strings.Join(paths, ",")
	if len(params.Columns) != len(s.Columns) {
		return nil, &DataLoadError{File: file, Err: xerrors.Errorf(
			"series has %d columns, scaling parameters have %d", len(s.Columns), len(params.Columns))}
	}
	for j, c := range s.Columns {
		if params.Columns[j] != c {
			return nil, &DataLoadError{File: file, Err: xerrors.Errorf(
				"column %d is %q, scaling parameters expect %q", j+1, c, params.Columns[j])}
		}
	}
	d := &Dataset{
		Files:          append([]string(nil), paths...),
		Columns:        s.Columns,
		Rows:           make([][]float64, len(s.Rows)),
		Scaling:        params,
		SequenceLength: opts.SequenceLength,
		FutureSteps:    opts.FutureSteps,
	}
	if d.SequenceLength <= 0 || d.FutureSteps <= 0 {
		return nil, xerrors.Errorf("sequence_length and future_steps must be positive, got %d and %d",
			d.SequenceLength, d.FutureSteps)
	}
	for i, row := range s.Rows {
		d.Rows[i] = params.Transform(row)
	}
	if len(opts.Targets) > 0 {
		idx, err := columnIndex(s.Columns, opts.Targets, file)
		if err != nil {
			return nil, err
		}
		d.targets = idx
	}
	if d.Len() == 0 {
		return nil, &DataLoadError{File: file, Err: xerrors.Errorf(
			"series of %d rows is too short for sequence_length %d + future_steps %d",
			len(s.Rows), d.SequenceLength, d.FutureSteps)}
	}
	return d, nil
}

/*
Len returns the number of complete windows, trailing partial windows are discarded
*/
func (d *Dataset) Len() int {
	n := len(d.Rows) - d.SequenceLength - d.FutureSteps + 1
	if n < 0 {
		return 0
	}
	return n
}

func (d *Dataset) InFeatures() int {
	return len(d.Columns)
}

func (d *Dataset) OutFeatures() int {
	if d.targets != nil {
		return len(d.targets)
	}
	return len(d.Columns)
}

/*
TargetScaling returns scaling parameters of target columns
*/
func (d *Dataset) TargetScaling() *ScalingParameters {
	if d.targets == nil {
		return d.Scaling
	}
	return d.Scaling.Project(d.targets)
}

/*
Window returns the i-th window, 0 <= i < Len()
*/
func (d *Dataset) Window(i int) Window {
	L, F := d.SequenceLength, d.FutureSteps
	w := Window{Start: i, Input: d.Rows[i : i+L : i+L]}
	target := d.Rows[i+L : i+L+F : i+L+F]
	if d.targets == nil {
		w.Target = target
		return w
	}
	w.Target = make([][]float64, F)
	for t, row := range target {
		x := make([]float64, len(d.targets))
		for k, j := range d.targets {
			x[k] = row[j]
		}
		w.Target[t] = x
	}
	return w
}
