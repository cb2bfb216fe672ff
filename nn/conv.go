package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

/*
Conv1D is a one dimensional convolution over time with stride 1.
The weight is laid out as [Out][Kernel][In] and the input is zero padded
by Padding rows at both ends, so the output has T+2*Padding-Kernel+1 rows.
*/
type Conv1D struct {
	In, Out, Kernel, Padding int
	W, B                     *Param
}

func NewConv1D(name string, in, out, kernel, padding int, rng *rand.Rand) *Conv1D {
	c := &Conv1D{
		In: in, Out: out, Kernel: kernel, Padding: padding,
		W: NewParam(name+".weight", out, kernel, in),
		B: NewParam(name+".bias", out),
	}
	FanIn(c.W, in*kernel, rng)
	FanIn(c.B, in*kernel, rng)
	return c
}

/*
OutLen returns the number of output rows for an input of n rows
*/
func (c *Conv1D) OutLen(n int) int {
	return n + 2*c.Padding - c.Kernel + 1
}

func (c *Conv1D) Params() []*Param {
	return []*Param{c.W, c.B}
}

func (c *Conv1D) kernel(o, k int) []float64 {
	j := (o*c.Kernel + k) * c.In
	return c.W.Value[j : j+c.In]
}

func (c *Conv1D) grad(o, k int) []float64 {
	j := (o*c.Kernel + k) * c.In
	return c.W.Grad[j : j+c.In]
}

func (c *Conv1D) Forward(x Seq, train bool) (Seq, Backward) {
	n := c.OutLen(len(x))
	if n < 0 {
		n = 0
	}
	y := zeros(n, c.Out)
	for t := 0; t < n; t++ {
		for o := 0; o < c.Out; o++ {
			s := c.B.Value[o]
			for k := 0; k < c.Kernel; k++ {
				if r := t + k - c.Padding; r >= 0 && r < len(x) {
					s += floats.Dot(c.kernel(o, k), x[r])
				}
			}
			y[t][o] = s
		}
	}
	return y, func(dy Seq) Seq {
		dx := zeros(len(x), c.In)
		for t := 0; t < n; t++ {
			for o, g := range dy[t] {
				if g == 0 {
					continue
				}
				c.B.Grad[o] += g
				for k := 0; k < c.Kernel; k++ {
					if r := t + k - c.Padding; r >= 0 && r < len(x) {
						floats.AddScaled(c.grad(o, k), g, x[r])
						floats.AddScaled(dx[r], g, c.kernel(o, k))
					}
				}
			}
		}
		return dx
	}
}
