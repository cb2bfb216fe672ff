package nn

import (
	"math"
	"math/rand"
)

/*
Uniform fills the parameter with values drawn from U(-bound, bound)
*/
func Uniform(p *Param, bound float64, rng *rand.Rand) {
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * bound
	}
}

/*
FanIn initializes the parameter with U(-1/sqrt(fanIn), 1/sqrt(fanIn))
*/
func FanIn(p *Param, fanIn int, rng *rand.Rand) {
	Uniform(p, 1/math.Sqrt(float64(fanIn)), rng)
}

/*
Glorot initializes the parameter with the Xavier uniform distribution
*/
func Glorot(p *Param, fanIn, fanOut int, rng *rand.Rand) {
	Uniform(p, math.Sqrt(6/float64(fanIn+fanOut)), rng)
}
