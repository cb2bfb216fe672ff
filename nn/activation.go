package nn

import (
	"math"
	"sort"
	"strings"
)

/*
Activation is an element-wise function with its derivative.
D receives both the input x and the output y = F(x).
*/
type Activation struct {
	Name string
	F    func(x float64) float64
	D    func(x, y float64) float64
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

var activations = map[string]Activation{
	"identity": {
		F: func(x float64) float64 { return x },
		D: func(x, y float64) float64 { return 1 },
	},
	"relu": {
		F: func(x float64) float64 { return math.Max(x, 0) },
		D: func(x, y float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	"leaky_relu": {
		F: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0.01 * x
		},
		D: func(x, y float64) float64 {
			if x > 0 {
				return 1
			}
			return 0.01
		},
	},
	"sigmoid": {
		F: sigmoid,
		D: func(x, y float64) float64 { return y * (1 - y) },
	},
	"tanh": {
		F: math.Tanh,
		D: func(x, y float64) float64 { return 1 - y*y },
	},
	"softplus": {
		F: func(x float64) float64 {
			if x > 20 {
				return x
			}
			return math.Log1p(math.Exp(x))
		},
		D: func(x, y float64) float64 { return sigmoid(x) },
	},
}

var activationAliases = map[string]string{
	"":          "identity",
	"linear":    "identity",
	"none":      "identity",
	"leakyrelu": "leaky_relu",
}

/*
ActivationByName resolves an activation function, names are case-insensitive
*/
func ActivationByName(name string) (Activation, error) {
	key := strings.ToLower(name)
	if a, ok := activationAliases[key]; ok {
		key = a
	}
	a, ok := activations[key]
	if !ok {
		return Activation{}, &UnknownActivationError{Name: name}
	}
	a.Name = key
	return a, nil
}

func Activations() []string {
	r := make([]string, 0, len(activations))
	for k := range activations {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}
