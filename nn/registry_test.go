package nn

import (
	"math"
	"math/rand"
	"testing"

	"golang.org/x/xerrors"
	"gotest.tools/assert"
	"gotest.tools/assert/cmp"
)

func TestUnknownNames(t *testing.T) {
	_, err := NewOptimizer("Sgd", nil, OptimizerOptions{})
	var oe *UnknownOptimizerError
	assert.Assert(t, xerrors.As(err, &oe))
	assert.Equal(t, oe.Name, "Sgd")
	assert.ErrorContains(t, err, "SGD")
	assert.Assert(t, CheckOptimizer("Sgd") != nil)
	assert.NilError(t, CheckOptimizer("AdamW"))

	_, err = NewLoss("mse")
	var le *UnknownLossError
	assert.Assert(t, xerrors.As(err, &le))
	assert.ErrorContains(t, err, "MSELoss")

	_, err = ActivationByName("gelu")
	var ae *UnknownActivationError
	assert.Assert(t, xerrors.As(err, &ae))

	a, err := ActivationByName("Linear")
	assert.NilError(t, err)
	assert.Equal(t, a.Name, "identity")
	assert.Check(t, cmp.DeepEqual(Optimizers(), []string{"Adam", "AdamW", "RMSprop", "SGD"}))
}

func TestLossGradients(t *testing.T) {
	pred := []float64{0.5, -2, 3, 0.1}
	target := []float64{0, 0, 1, 0.3}
	for _, name := range Losses() {
		l, err := NewLoss(name)
		assert.NilError(t, err)
		_, grad := l.Forward(pred, target)
		for i := range pred {
			v := pred[i]
			pred[i] = v + 1e-6
			a, _ := l.Forward(pred, target)
			pred[i] = v - 1e-6
			b, _ := l.Forward(pred, target)
			pred[i] = v
			num := (a - b) / 2e-6
			assert.Assert(t, math.Abs(num-grad[i]) < 1e-6, "%v[%d]: %v != %v", name, i, num, grad[i])
		}
	}
	mse, _ := NewLoss("MSELoss")
	v, _ := mse.Forward([]float64{1, 2}, []float64{1, 4})
	assert.Equal(t, v, 2.0)
}

func TestOptimizersMinimizeQuadratic(t *testing.T) {
	for _, name := range Optimizers() {
		p := NewParam("x", 3)
		Uniform(p, 3, rand.New(rand.NewSource(1)))
		opt, err := NewOptimizer(name, []*Param{p}, OptimizerOptions{LR: 0.01, Momentum: 0.5})
		assert.NilError(t, err)
		assert.Equal(t, opt.Name(), name)
		for i := 0; i < 3000; i++ {
			opt.ZeroGrad()
			for j, v := range p.Value {
				p.Grad[j] = 2 * (v - 1)
			}
			opt.Step()
		}
		for _, v := range p.Value {
			assert.Assert(t, math.Abs(v-1) < 0.05, "%v converged to %v", name, v)
		}
	}
}

func TestClipGradNormAndSchedule(t *testing.T) {
	p := NewParam("w", 2)
	p.Grad[0], p.Grad[1] = 3, 4
	norm := ClipGradNorm([]*Param{p}, 1)
	assert.Equal(t, norm, 5.0)
	assert.Assert(t, math.Abs(GradNorm([]*Param{p})-1) < 1e-5)

	opt, err := NewOptimizer("SGD", []*Param{p}, OptimizerOptions{LR: 0.1})
	assert.NilError(t, err)
	ExponentialLR{Gamma: 0.5}.Step(opt)
	assert.Equal(t, opt.LR(), 0.05)
}

func TestOptimizerLearningRate(t *testing.T) {
	for _, name := range Optimizers() {
		p := NewParam("w", 2)
		p.Value[0], p.Value[1] = 1, -1
		opt, err := NewOptimizer(name, []*Param{p}, OptimizerOptions{})
		assert.NilError(t, err)
		assert.Equal(t, opt.LR(), DefaultLR, name)

		opt, err = NewOptimizer(name, []*Param{p}, OptimizerOptions{LR: 0.2})
		assert.NilError(t, err)
		assert.Equal(t, opt.LR(), 0.2, name)
		opt.SetLR(0)
		p.Grad[0], p.Grad[1] = 1, 1
		opt.Step()
		assert.DeepEqual(t, p.Value, []float64{1, -1})
	}
}
