package model

import (
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
	"go-ml.dev/pkg/tsdl/zlog"
	"golang.org/x/xerrors"
)

func init() {
	Register("ConvLSTM", NewConvLSTM)
}

/*
ConvLSTM encodes the window with a 1D convolution into latent_features
channels, runs the recurrent stack over the convolved sequence and
projects the last hidden state to the forecast
*/
type ConvLSTM struct {
	*Base
	Conv *nn.Conv1D
}

func NewConvLSTM(h Hyper, seed int64) (Model, error) {
	if err := checkShape(h); err != nil {
		return nil, err
	}
	b, err := NewBase("ConvLSTM", h)
	if err != nil {
		return nil, err
	}
	rng, drop := fu.Rand(seed, fu.InitStream), fu.Rand(seed, fu.DropoutStream)
	conv := nn.NewConv1D("conv", h.InFeatures, h.LatentFeatures, h.Kernel, h.Padding, rng)
	n := conv.OutLen(h.SequenceLength)
	if n <= 0 {
		return nil, xerrors.Errorf("convolution with kernel %d and padding %d leaves no steps of sequence_length %d",
			h.Kernel, h.Padding, h.SequenceLength)
	}
	if n < h.LatentFeatures {
		zlog.Warning("convolution output is shorter than the latent space",
			"steps", n, "latent_features", h.LatentFeatures)
	}
	relu, err := nn.NewAct("relu")
	if err != nil {
		return nil, err
	}
	net := append(nn.Sequential{conv, relu}, recurrent(h.LatentFeatures, h, rng, drop)...)
	head, err := forecastHead(h, rng, drop)
	if err != nil {
		return nil, err
	}
	b.Net = append(net, head...)
	return &ConvLSTM{b, conv}, nil
}
