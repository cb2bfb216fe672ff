package dataset

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"go-ml.dev/pkg/tsdl/fu"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type ScalerKind string

const (
	Standardize ScalerKind = "standardize"
	MinMax      ScalerKind = "minmax"
	NoScaling   ScalerKind = "none"
)

/*
ParseScaler resolves a scaler name, the empty name means standardize
*/
func ParseScaler(s string) (ScalerKind, error) {
	switch s {
	case "", "standardize", "standard":
		return Standardize, nil
	case "minmax", "min-max":
		return MinMax, nil
	case "none":
		return NoScaling, nil
	}
	return "", xerrors.Errorf("unknown scaler %q", s)
}

/*
ScalingParameters are per-column statistics fitted once over the whole series.
A value x is scaled as (x - Offset) / Scale.
*/
type ScalingParameters struct {
	Kind       ScalerKind `json:"kind"`
	Columns    []string   `json:"columns"`
	Offset     []float64  `json:"offset"`
	Scale      []float64  `json:"scale"`
	Degenerate []string   `json:"degenerate,omitempty"`
}

/*
FitScaler computes scaling parameters over the series.
Columns without spread get unit scale; they are reported by a
*DegenerateScaleError returned together with the valid parameters.
*/
func FitScaler(kind ScalerKind, s *Series) (*ScalingParameters, error) {
	n := len(s.Columns)
	p := &ScalingParameters{
		Kind:    kind,
		Columns: append([]string(nil), s.Columns...),
		Offset:  make([]float64, n),
		Scale:   make([]float64, n),
	}
	for j := 0; j < n; j++ {
		p.Scale[j] = 1
		col := s.Column(j)
		for _, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &DataLoadError{Err: xerrors.Errorf("column %q has non-finite values", s.Columns[j])}
			}
		}
		if kind == NoScaling {
			continue
		}
		var offset, spread float64
		switch kind {
		case Standardize:
			offset, spread = stat.MeanStdDev(col, nil)
		case MinMax:
			offset = floats.Min(col)
			spread = floats.Max(col) - offset
		default:
			return nil, xerrors.Errorf("unknown scaler %q", kind)
		}
		p.Offset[j] = offset
		if spread == 0 {
			p.Degenerate = append(p.Degenerate, s.Columns[j])
			continue
		}
		p.Scale[j] = spread
	}
	if len(p.Degenerate) > 0 {
		return p, &DegenerateScaleError{Kind: kind, Columns: p.Degenerate}
	}
	return p, nil
}

/*
Transform returns the scaled copy of the row
*/
func (p *ScalingParameters) Transform(row []float64) []float64 {
	r := make([]float64, len(row))
	for j, x := range row {
		r[j] = (x - p.Offset[j]) / p.Scale[j]
	}
	return r
}

/*
Inverse returns the row in original units
*/
func (p *ScalingParameters) Inverse(row []float64) []float64 {
	r := make([]float64, len(row))
	for j, x := range row {
		r[j] = p.InverseValue(j, x)
	}
	return r
}

/*
InverseValue returns the value of the j-th column in original units
*/
func (p *ScalingParameters) InverseValue(j int, x float64) float64 {
	return x*p.Scale[j] + p.Offset[j]
}

/*
Project returns parameters of the selected columns
*/
func (p *ScalingParameters) Project(idx []int) *ScalingParameters {
	r := &ScalingParameters{Kind: p.Kind}
	for _, j := range idx {
		r.Columns = append(r.Columns, p.Columns[j])
		r.Offset = append(r.Offset, p.Offset[j])
		r.Scale = append(r.Scale, p.Scale[j])
	}
	return r
}

func (p *ScalingParameters) Save(path string) error {
	return fu.Output(path).WriteWhole(func(w io.Writer) error {
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(p)
	})
}

func LoadScaling(path string) (*ScalingParameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open scaling parameters: %w", err)
	}
	defer f.Close()
	p := &ScalingParameters{}
	if err := json.NewDecoder(f).Decode(p); err != nil {
		return nil, xerrors.Errorf("failed to decode %v: %w", path, err)
	}
	if len(p.Offset) != len(p.Columns) || len(p.Scale) != len(p.Columns) {
		return nil, xerrors.Errorf("%v: inconsistent scaling parameters", path)
	}
	return p, nil
}
