package nn

import (
	"math/rand"

	"go-ml.dev/pkg/tsdl/fu"
	"gonum.org/v1/gonum/floats"
)

/*
Layer is a differentiable transformation of a sequence
*/
type Layer interface {
	// Forward computes the layer output,
	// train enables training-only behaviour like dropout
	Forward(x Seq, train bool) (Seq, Backward)
	Params() []*Param
}

/*
Sequential chains layers
*/
type Sequential []Layer

func (s Sequential) Forward(x Seq, train bool) (Seq, Backward) {
	backs := make([]Backward, len(s))
	for i, l := range s {
		x, backs[i] = l.Forward(x, train)
	}
	return x, func(dy Seq) Seq {
		for i := len(backs) - 1; i >= 0; i-- {
			dy = backs[i](dy)
		}
		return dy
	}
}

func (s Sequential) Params() []*Param {
	var r []*Param
	for _, l := range s {
		r = append(r, l.Params()...)
	}
	return r
}

/*
Dense is a fully connected layer applied to every row of the sequence
*/
type Dense struct {
	In, Out int
	W, B    *Param
}

func NewDense(name string, in, out int, rng *rand.Rand) *Dense {
	d := &Dense{In: in, Out: out, W: NewParam(name+".weight", out, in), B: NewParam(name+".bias", out)}
	Glorot(d.W, in, out, rng)
	FanIn(d.B, in, rng)
	return d
}

func (d *Dense) Params() []*Param {
	return []*Param{d.W, d.B}
}

func (d *Dense) Forward(x Seq, train bool) (Seq, Backward) {
	y := zeros(len(x), d.Out)
	for t, xt := range x {
		for o := 0; o < d.Out; o++ {
			y[t][o] = d.B.Value[o] + floats.Dot(d.W.Value[o*d.In:(o+1)*d.In], xt)
		}
	}
	return y, func(dy Seq) Seq {
		dx := zeros(len(x), d.In)
		for t, xt := range x {
			for o, g := range dy[t] {
				if g == 0 {
					continue
				}
				d.B.Grad[o] += g
				floats.AddScaled(d.W.Grad[o*d.In:(o+1)*d.In], g, xt)
				floats.AddScaled(dx[t], g, d.W.Value[o*d.In:(o+1)*d.In])
			}
		}
		return dx
	}
}

/*
Act applies an activation element-wise
*/
type Act struct {
	Activation
}

func NewAct(name string) (*Act, error) {
	a, err := ActivationByName(name)
	if err != nil {
		return nil, err
	}
	return &Act{a}, nil
}

func (a *Act) Params() []*Param {
	return nil
}

func (a *Act) Forward(x Seq, train bool) (Seq, Backward) {
	y := zeros(len(x), width(x))
	for t, xt := range x {
		for i, v := range xt {
			y[t][i] = a.F(v)
		}
	}
	return y, func(dy Seq) Seq {
		dx := zeros(len(x), width(x))
		for t, xt := range x {
			for i, v := range xt {
				dx[t][i] = dy[t][i] * a.D(v, y[t][i])
			}
		}
		return dx
	}
}

/*
Dropout zeroes inputs with probability P while training
and rescales the rest by 1/(1-P)
*/
type Dropout struct {
	P   float64
	Rng *rand.Rand
}

func (d *Dropout) Params() []*Param {
	return nil
}

func (d *Dropout) Forward(x Seq, train bool) (Seq, Backward) {
	if !train || d.P <= 0 {
		return x, func(dy Seq) Seq { return dy }
	}
	k := 1 / (1 - d.P)
	mask := zeros(len(x), width(x))
	y := zeros(len(x), width(x))
	for t, xt := range x {
		for i, v := range xt {
			if d.Rng.Float64() >= d.P {
				mask[t][i] = k
				y[t][i] = v * k
			}
		}
	}
	return y, func(dy Seq) Seq {
		dx := zeros(len(dy), width(dy))
		for t := range dy {
			for i, g := range dy[t] {
				dx[t][i] = g * mask[t][i]
			}
		}
		return dx
	}
}

/*
LastStep keeps only the last row of the sequence
*/
type LastStep struct{}

func (LastStep) Params() []*Param {
	return nil
}

func (LastStep) Forward(x Seq, train bool) (Seq, Backward) {
	last := append([]float64(nil), x[len(x)-1]...)
	return Seq{last}, func(dy Seq) Seq {
		dx := zeros(len(x), width(x))
		copy(dx[len(x)-1], dy[0])
		return dx
	}
}

/*
Flatten turns a sequence into a single row
*/
type Flatten struct{}

func (Flatten) Params() []*Param {
	return nil
}

func (Flatten) Forward(x Seq, train bool) (Seq, Backward) {
	cols := width(x)
	return Seq{fu.Flatnr(x)}, func(dy Seq) Seq {
		return fu.Reshape(append([]float64(nil), dy[0]...), cols)
	}
}

/*
Unflatten turns a single row into a sequence of Cols wide rows
*/
type Unflatten struct {
	Cols int
}

func (Unflatten) Params() []*Param {
	return nil
}

func (u Unflatten) Forward(x Seq, train bool) (Seq, Backward) {
	return fu.Reshape(append([]float64(nil), x[0]...), u.Cols), func(dy Seq) Seq {
		return Seq{fu.Flatnr(dy)}
	}
}
