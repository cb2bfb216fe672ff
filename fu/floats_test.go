package fu

import (
	"math"
	"testing"

	"gotest.tools/assert"
)

func TestIndmind(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		a    []float64
		want int
	}{
		{[]float64{3, 1, 2, 1}, 1},
		{[]float64{nan, 2, 1}, 2},
		{[]float64{nan, 2, nan}, 1},
		{[]float64{4, nan, 5}, 0},
		{[]float64{math.Inf(1), 7}, 1},
		{[]float64{nan, nan}, 0},
		{[]float64{}, 0},
	}
	for _, c := range cases {
		assert.Equal(t, Indmind(c.a), c.want, "%v", c.a)
	}
}
