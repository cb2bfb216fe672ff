package fu

import (
	"math"
)

func Mse(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		q := x - b[i]
		c += q * q
	}
	return c / float64(len(a))
}

func Mae(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		c += math.Abs(x - b[i])
	}
	return c / float64(len(a))
}

/*
Flatnr concatenates rows into one vector
*/
func Flatnr(a [][]float64) []float64 {
	n := 0
	for _, x := range a {
		n += len(x)
	}
	r := make([]float64, n)
	i := 0
	for _, x := range a {
		copy(r[i:i+len(x)], x)
		i += len(x)
	}
	return r
}

/*
Reshape splits a flat vector into rows of cols values
*/
func Reshape(a []float64, cols int) [][]float64 {
	r := make([][]float64, len(a)/cols)
	for i := range r {
		r[i] = a[i*cols : (i+1)*cols]
	}
	return r
}

/*
Indmind returns the index of the minimal value, the first one if there are several.
NaN values are skipped, 0 is returned if all of them are NaN
*/
func Indmind(a []float64) int {
	j := 0
	for i, x := range a {
		if !math.IsNaN(x) && (math.IsNaN(a[j]) || x < a[j]) {
			j = i
		}
	}
	return j
}
