package nn

import (
	"math"
	"sort"
)

/*
Loss is a reduction of predictions against targets to a scalar.
Forward returns the mean loss over all elements and its gradient with
respect to every prediction element.
*/
type Loss interface {
	Name() string
	Forward(pred, target []float64) (float64, []float64)
}

type lossFunc struct {
	name string
	fn   func(d float64) (float64, float64) // loss and derivative of pred-target
}

func (l lossFunc) Name() string {
	return l.name
}

func (l lossFunc) Forward(pred, target []float64) (float64, []float64) {
	grad := make([]float64, len(pred))
	if len(pred) == 0 {
		return 0, grad
	}
	n := float64(len(pred))
	var s float64
	for i, p := range pred {
		v, d := l.fn(p - target[i])
		s += v
		grad[i] = d / n
	}
	return s / n, grad
}

func huber(delta float64) func(float64) (float64, float64) {
	return func(d float64) (float64, float64) {
		if a := math.Abs(d); a > delta {
			return delta * (a - delta/2), delta * math.Copysign(1, d)
		}
		return d * d / 2, d
	}
}

var losses = map[string]func() Loss{
	"MSELoss": func() Loss {
		return lossFunc{"MSELoss", func(d float64) (float64, float64) { return d * d, 2 * d }}
	},
	"L1Loss": func() Loss {
		return lossFunc{"L1Loss", func(d float64) (float64, float64) {
			switch {
			case d > 0:
				return d, 1
			case d < 0:
				return -d, -1
			}
			return 0, 0
		}}
	},
	"HuberLoss":    func() Loss { return lossFunc{"HuberLoss", huber(1)} },
	"SmoothL1Loss": func() Loss { return lossFunc{"SmoothL1Loss", huber(1)} },
}

/*
NewLoss returns a registered loss, names are case-sensitive
*/
func NewLoss(name string) (Loss, error) {
	f, ok := losses[name]
	if !ok {
		return nil, &UnknownLossError{Name: name}
	}
	return f(), nil
}

func Losses() []string {
	r := make([]string, 0, len(losses))
	for k := range losses {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}
