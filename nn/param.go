/*
Package nn is the numeric engine executing forecasting models:
trainable parameters, layers with explicit backward passes,
losses and optimizers.

Tensors are plain float64 slices. A sample sequence is a Seq
(rows are timesteps, columns are features) and a mini-batch is a Batch of
sequences. Every layer forward returns a Backward closure that accumulates
parameter gradients and returns the gradient of the layer input.
*/
package nn

import (
	"math"

	"go-ml.dev/pkg/tsdl/fu"
	"gonum.org/v1/gonum/floats"
)

/*
Seq is a sequence of feature vectors, one row per timestep
*/
type Seq [][]float64

/*
Batch is a set of sequences processed together
*/
type Batch []Seq

/*
Backward propagates the output gradient through a layer
and returns the input gradient
*/
type Backward func(dy Seq) Seq

/*
BatchBackward propagates gradients of a whole batch
*/
type BatchBackward func(dy Batch)

/*
Param is a trainable tensor with its accumulated gradient
*/
type Param struct {
	Name  string
	Shape []int
	Value []float64
	Grad  []float64
}

func NewParam(name string, shape ...int) *Param {
	n := 1
	for _, x := range shape {
		n *= x
	}
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Value: make([]float64, n),
		Grad:  make([]float64, n),
	}
}

func (p *Param) Len() int {
	return len(p.Value)
}

func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

/*
ZeroGrad resets gradients of all parameters
*/
func ZeroGrad(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

/*
GradNorm returns the global L2 norm of all gradients
*/
func GradNorm(params []*Param) float64 {
	var s float64
	for _, p := range params {
		s += floats.Dot(p.Grad, p.Grad)
	}
	return math.Sqrt(s)
}

/*
ClipGradNorm rescales gradients so their global L2 norm does not exceed maxNorm.
It returns the norm before clipping.
*/
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if maxNorm > 0 && norm > maxNorm {
		k := maxNorm / (norm + 1e-6)
		for _, p := range params {
			floats.Scale(k, p.Grad)
		}
	}
	return norm
}

/*
Round32 rounds all parameter values to float32 precision
*/
func Round32(params []*Param) {
	for _, p := range params {
		fu.Round32s(p.Value)
	}
}

/*
Count returns the total number of scalar values in params
*/
func Count(params []*Param) int {
	n := 0
	for _, p := range params {
		n += p.Len()
	}
	return n
}

func zeros(rows, cols int) Seq {
	r := make(Seq, rows)
	for i := range r {
		r[i] = make([]float64, cols)
	}
	return r
}

func width(x Seq) int {
	if len(x) == 0 {
		return 0
	}
	return len(x[0])
}
