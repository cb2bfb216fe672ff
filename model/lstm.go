package model

import (
	"fmt"
	"math/rand"

	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
)

func init() {
	Register("LSTM", NewLSTM)
}

/*
LSTM runs a stack of recurrent layers over the window and projects
the last hidden state to the forecast
*/
type LSTM struct {
	*Base
}

func NewLSTM(h Hyper, seed int64) (Model, error) {
	if err := checkShape(h); err != nil {
		return nil, err
	}
	b, err := NewBase("LSTM", h)
	if err != nil {
		return nil, err
	}
	rng, drop := fu.Rand(seed, fu.InitStream), fu.Rand(seed, fu.DropoutStream)
	net := recurrent(h.InFeatures, h, rng, drop)
	head, err := forecastHead(h, rng, drop)
	if err != nil {
		return nil, err
	}
	b.Net = append(net, head...)
	return &LSTM{b}, nil
}

// recurrent stacks h.LSTMLayers layers with dropout between them
func recurrent(in int, h Hyper, rng, drop *rand.Rand) nn.Sequential {
	var s nn.Sequential
	for k := 0; k < h.LSTMLayers; k++ {
		if k > 0 && h.Dropout > 0 {
			s = append(s, &nn.Dropout{P: h.Dropout, Rng: drop})
		}
		s = append(s, nn.NewLSTM(fmt.Sprintf("lstm.%d", k), in, h.HiddenDim, rng))
		in = h.HiddenDim
	}
	return s
}

// forecastHead maps the last hidden state to (future_steps, out_features)
func forecastHead(h Hyper, rng, drop *rand.Rand) (nn.Sequential, error) {
	act, err := nn.NewAct(h.OutAct)
	if err != nil {
		return nil, err
	}
	s := nn.Sequential{nn.LastStep{}}
	if h.Dropout > 0 {
		s = append(s, &nn.Dropout{P: h.Dropout, Rng: drop})
	}
	return append(s,
		nn.NewDense("head", h.HiddenDim, h.FutureSteps*h.OutFeatures, rng),
		act,
		nn.Unflatten{Cols: h.OutFeatures}), nil
}
