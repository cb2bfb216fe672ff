package model

import (
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
	"golang.org/x/xerrors"
)

func init() {
	Register("Linear", NewLinear)
}

/*
Linear maps the flattened input window directly to the flattened forecast
*/
type Linear struct {
	*Base
}

func NewLinear(h Hyper, seed int64) (Model, error) {
	if err := checkShape(h); err != nil {
		return nil, err
	}
	b, err := NewBase("Linear", h)
	if err != nil {
		return nil, err
	}
	act, err := nn.NewAct(h.OutAct)
	if err != nil {
		return nil, err
	}
	rng := fu.Rand(seed, fu.InitStream)
	b.Net = nn.Sequential{
		nn.Flatten{},
		nn.NewDense("linear", h.SequenceLength*h.InFeatures, h.FutureSteps*h.OutFeatures, rng),
		act,
		nn.Unflatten{Cols: h.OutFeatures},
	}
	return &Linear{b}, nil
}

func checkShape(h Hyper) error {
	for _, x := range []struct {
		name  string
		value int
	}{
		{"in_features", h.InFeatures},
		{"out_features", h.OutFeatures},
		{"sequence_length", h.SequenceLength},
		{"future_steps", h.FutureSteps},
	} {
		if x.value <= 0 {
			return xerrors.Errorf("%s must be positive, got %d", x.name, x.value)
		}
	}
	return nil
}
