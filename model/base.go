package model

import (
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
)

/*
Base implements the Model contract around a layer stack,
concrete architectures only build Net from the hyper-parameters
*/
type Base struct {
	Net   nn.Layer
	name  string
	hyper Hyper
	loss  nn.Loss
}

/*
NewBase resolves loss and optimizer names so that a bad configuration
fails before any training starts
*/
func NewBase(name string, h Hyper) (*Base, error) {
	loss, err := nn.NewLoss(h.Loss)
	if err != nil {
		return nil, err
	}
	if err = nn.CheckOptimizer(h.Optimizer); err != nil {
		return nil, err
	}
	return &Base{name: name, hyper: h, loss: loss}, nil
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Hyper() Hyper {
	return b.hyper
}

func (b *Base) Params() []*nn.Param {
	return b.Net.Params()
}

func (b *Base) Forward(x nn.Batch, train bool) (nn.Batch, nn.BatchBackward) {
	y := make(nn.Batch, len(x))
	backs := make([]nn.Backward, len(x))
	for i, s := range x {
		y[i], backs[i] = b.Net.Forward(s, train)
	}
	return y, func(dy nn.Batch) {
		for i, back := range backs {
			back(dy[i])
		}
	}
}

func (b *Base) ComputeLoss(pred, target nn.Batch) (float64, nn.Batch) {
	var p, t []float64
	for i := range pred {
		p = append(p, fu.Flatnr(pred[i])...)
		t = append(t, fu.Flatnr(target[i])...)
	}
	loss, g := b.loss.Forward(p, t)
	grad := make(nn.Batch, len(pred))
	j := 0
	for i, s := range pred {
		grad[i] = make(nn.Seq, len(s))
		for r, row := range s {
			grad[i][r] = g[j : j+len(row)]
			j += len(row)
		}
	}
	return loss, grad
}

func (b *Base) ConfigureOptimizer() (nn.Optimizer, error) {
	o := nn.OptimizerOptions{
		LR:          b.hyper.LR,
		WeightDecay: b.hyper.WeightDecay,
		Momentum:    b.hyper.Momentum,
	}
	if len(b.hyper.AdamBetas) == 2 {
		o.Betas = [2]float64{b.hyper.AdamBetas[0], b.hyper.AdamBetas[1]}
	}
	return nn.NewOptimizer(b.hyper.Optimizer, b.Params(), o)
}
