package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

/*
LSTM is a single recurrent layer returning the hidden state of every timestep.
Gates are stacked in the order input, forget, cell, output
in Wx [4*Hidden][In], Wh [4*Hidden][Hidden] and B [4*Hidden].
The initial hidden and cell states are zeros.
*/
type LSTM struct {
	In, Hidden int
	Wx, Wh, B  *Param
}

func NewLSTM(name string, in, hidden int, rng *rand.Rand) *LSTM {
	l := &LSTM{
		In: in, Hidden: hidden,
		Wx: NewParam(name+".weight_ih", 4*hidden, in),
		Wh: NewParam(name+".weight_hh", 4*hidden, hidden),
		B:  NewParam(name+".bias", 4*hidden),
	}
	for _, p := range l.Params() {
		FanIn(p, hidden, rng)
	}
	// forget gate bias starts at 1
	for j := hidden; j < 2*hidden; j++ {
		l.B.Value[j] += 1
	}
	return l
}

func (l *LSTM) Params() []*Param {
	return []*Param{l.Wx, l.Wh, l.B}
}

type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	c, tc           []float64
}

func (l *LSTM) Forward(x Seq, train bool) (Seq, Backward) {
	H := l.Hidden
	steps := make([]lstmStep, len(x))
	h := make([]float64, H)
	c := make([]float64, H)
	y := make(Seq, len(x))
	z := make([]float64, 4*H)
	for t, xt := range x {
		for j := range z {
			z[j] = l.B.Value[j] +
				floats.Dot(l.Wx.Value[j*l.In:(j+1)*l.In], xt) +
				floats.Dot(l.Wh.Value[j*H:(j+1)*H], h)
		}
		s := lstmStep{
			x: xt, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H), g: make([]float64, H), o: make([]float64, H),
			c: make([]float64, H), tc: make([]float64, H),
		}
		hn := make([]float64, H)
		for k := 0; k < H; k++ {
			s.i[k] = sigmoid(z[k])
			s.f[k] = sigmoid(z[H+k])
			s.g[k] = math.Tanh(z[2*H+k])
			s.o[k] = sigmoid(z[3*H+k])
			s.c[k] = s.f[k]*c[k] + s.i[k]*s.g[k]
			s.tc[k] = math.Tanh(s.c[k])
			hn[k] = s.o[k] * s.tc[k]
		}
		steps[t] = s
		h, c = hn, s.c
		y[t] = hn
	}
	return y, func(dy Seq) Seq {
		dx := zeros(len(x), l.In)
		dhNext := make([]float64, H)
		dcNext := make([]float64, H)
		dz := make([]float64, 4*H)
		for t := len(steps) - 1; t >= 0; t-- {
			s := steps[t]
			for k := 0; k < H; k++ {
				dh := dy[t][k] + dhNext[k]
				do := dh * s.tc[k]
				dc := dh*s.o[k]*(1-s.tc[k]*s.tc[k]) + dcNext[k]
				di := dc * s.g[k]
				dg := dc * s.i[k]
				df := dc * s.cPrev[k]
				dcNext[k] = dc * s.f[k]
				dz[k] = di * s.i[k] * (1 - s.i[k])
				dz[H+k] = df * s.f[k] * (1 - s.f[k])
				dz[2*H+k] = dg * (1 - s.g[k]*s.g[k])
				dz[3*H+k] = do * s.o[k] * (1 - s.o[k])
			}
			for k := range dhNext {
				dhNext[k] = 0
			}
			for j, g := range dz {
				if g == 0 {
					continue
				}
				l.B.Grad[j] += g
				floats.AddScaled(l.Wx.Grad[j*l.In:(j+1)*l.In], g, s.x)
				floats.AddScaled(l.Wh.Grad[j*H:(j+1)*H], g, s.hPrev)
				floats.AddScaled(dx[t], g, l.Wx.Value[j*l.In:(j+1)*l.In])
				floats.AddScaled(dhNext, g, l.Wh.Value[j*H:(j+1)*H])
			}
		}
		return dx
	}
}
