package nn

import (
	"math"
	"sort"
)

/*
Optimizer updates parameters from their accumulated gradients
*/
type Optimizer interface {
	Name() string
	Step()
	ZeroGrad()
	LR() float64
	SetLR(lr float64)
	Params() []*Param
}

/*
OptimizerOptions are the hyper-parameters shared by all optimizers,
zero values select the optimizer defaults
*/
type OptimizerOptions struct {
	LR          float64
	WeightDecay float64
	Momentum    float64
	Betas       [2]float64
	Eps         float64
}

const DefaultLR = 1e-3

type base struct {
	name   string
	params []*Param
	lr     float64
}

func (b *base) Name() string       { return b.name }
func (b *base) LR() float64        { return b.lr }
func (b *base) SetLR(lr float64)   { b.lr = lr }
func (b *base) Params() []*Param   { return b.params }
func (b *base) ZeroGrad()          { ZeroGrad(b.params) }
func (b *base) state() [][]float64 { return make([][]float64, len(b.params)) }

type sgd struct {
	base
	opts     OptimizerOptions
	velocity [][]float64
}

func (o *sgd) Step() {
	for i, p := range o.params {
		if o.velocity[i] == nil {
			o.velocity[i] = make([]float64, p.Len())
		}
		v := o.velocity[i]
		for j, g := range p.Grad {
			g += o.opts.WeightDecay * p.Value[j]
			if o.opts.Momentum != 0 {
				v[j] = o.opts.Momentum*v[j] + g
				g = v[j]
			}
			p.Value[j] -= o.lr * g
		}
	}
}

type adam struct {
	base
	opts      OptimizerOptions
	decoupled bool
	t         int
	m, v      [][]float64
}

func (o *adam) Step() {
	o.t++
	b1, b2 := o.opts.Betas[0], o.opts.Betas[1]
	c1 := 1 - math.Pow(b1, float64(o.t))
	c2 := 1 - math.Pow(b2, float64(o.t))
	for i, p := range o.params {
		if o.m[i] == nil {
			o.m[i] = make([]float64, p.Len())
			o.v[i] = make([]float64, p.Len())
		}
		m, v := o.m[i], o.v[i]
		for j, g := range p.Grad {
			if o.decoupled {
				p.Value[j] -= o.lr * o.opts.WeightDecay * p.Value[j]
			} else {
				g += o.opts.WeightDecay * p.Value[j]
			}
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g
			p.Value[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.opts.Eps)
		}
	}
}

type rmsprop struct {
	base
	opts  OptimizerOptions
	alpha float64
	sq    [][]float64
}

func (o *rmsprop) Step() {
	for i, p := range o.params {
		if o.sq[i] == nil {
			o.sq[i] = make([]float64, p.Len())
		}
		s := o.sq[i]
		for j, g := range p.Grad {
			g += o.opts.WeightDecay * p.Value[j]
			s[j] = o.alpha*s[j] + (1-o.alpha)*g*g
			p.Value[j] -= o.lr * g / (math.Sqrt(s[j]) + o.opts.Eps)
		}
	}
}

func withDefaults(o OptimizerOptions, wd float64) OptimizerOptions {
	if o.LR == 0 {
		o.LR = DefaultLR
	}
	if o.Betas == [2]float64{} {
		o.Betas = [2]float64{0.9, 0.999}
	}
	if o.Eps == 0 {
		o.Eps = 1e-8
	}
	if o.WeightDecay == 0 {
		o.WeightDecay = wd
	}
	return o
}

var optimizers = map[string]func([]*Param, OptimizerOptions) Optimizer{
	"SGD": func(p []*Param, o OptimizerOptions) Optimizer {
		o = withDefaults(o, 0)
		x := &sgd{base: base{"SGD", p, o.LR}, opts: o}
		x.velocity = x.state()
		return x
	},
	"Adam": func(p []*Param, o OptimizerOptions) Optimizer {
		o = withDefaults(o, 0)
		x := &adam{base: base{"Adam", p, o.LR}, opts: o}
		x.m, x.v = x.state(), x.state()
		return x
	},
	"AdamW": func(p []*Param, o OptimizerOptions) Optimizer {
		o = withDefaults(o, 1e-2)
		x := &adam{base: base{"AdamW", p, o.LR}, opts: o, decoupled: true}
		x.m, x.v = x.state(), x.state()
		return x
	},
	"RMSprop": func(p []*Param, o OptimizerOptions) Optimizer {
		o = withDefaults(o, 0)
		x := &rmsprop{base: base{"RMSprop", p, o.LR}, opts: o, alpha: 0.99}
		x.sq = x.state()
		return x
	},
}

/*
CheckOptimizer reports whether the optimizer name is registered
*/
func CheckOptimizer(name string) error {
	if _, ok := optimizers[name]; !ok {
		return &UnknownOptimizerError{Name: name}
	}
	return nil
}

/*
NewOptimizer returns a registered optimizer bound to params, names are case-sensitive
*/
func NewOptimizer(name string, params []*Param, opts OptimizerOptions) (Optimizer, error) {
	f, ok := optimizers[name]
	if !ok {
		return nil, &UnknownOptimizerError{Name: name}
	}
	return f(params, opts), nil
}

func Optimizers() []string {
	r := make([]string, 0, len(optimizers))
	for k := range optimizers {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

/*
ExponentialLR multiplies the learning rate by Gamma on every Step
*/
type ExponentialLR struct {
	Gamma float64
}

func (s ExponentialLR) Step(o Optimizer) {
	if s.Gamma > 0 && s.Gamma != 1 {
		o.SetLR(o.LR() * s.Gamma)
	}
}
