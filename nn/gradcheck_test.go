package nn

import (
	"math"
	"math/rand"
	"testing"

	"gotest.tools/assert"
)

const eps = 1e-6

func randSeq(rng *rand.Rand, rows, cols int) Seq {
	x := zeros(rows, cols)
	for _, r := range x {
		for i := range r {
			r[i] = rng.NormFloat64()
		}
	}
	return x
}

// scalar objective sum(w*y) so that dy == w
func objective(l Layer, x, w Seq) float64 {
	y, _ := l.Forward(x, false)
	var s float64
	for t := range y {
		for i := range y[t] {
			s += y[t][i] * w[t][i]
		}
	}
	return s
}

func checkGradients(t *testing.T, l Layer, x Seq, outRows, outCols int) {
	rng := rand.New(rand.NewSource(7))
	w := randSeq(rng, outRows, outCols)
	ZeroGrad(l.Params())
	y, back := l.Forward(x, false)
	assert.Equal(t, len(y), outRows)
	assert.Equal(t, len(y[0]), outCols)
	dx := back(w)

	for _, p := range l.Params() {
		for j := range p.Value {
			v := p.Value[j]
			p.Value[j] = v + eps
			a := objective(l, x, w)
			p.Value[j] = v - eps
			b := objective(l, x, w)
			p.Value[j] = v
			num := (a - b) / (2 * eps)
			assert.Assert(t, math.Abs(num-p.Grad[j]) < 1e-5*math.Max(1, math.Abs(num)),
				"%v[%d]: numeric %v, analytic %v", p.Name, j, num, p.Grad[j])
		}
	}
	for r := range x {
		for i := range x[r] {
			v := x[r][i]
			x[r][i] = v + eps
			a := objective(l, x, w)
			x[r][i] = v - eps
			b := objective(l, x, w)
			x[r][i] = v
			num := (a - b) / (2 * eps)
			assert.Assert(t, math.Abs(num-dx[r][i]) < 1e-5*math.Max(1, math.Abs(num)),
				"dx[%d][%d]: numeric %v, analytic %v", r, i, num, dx[r][i])
		}
	}
}

func TestDenseGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	checkGradients(t, NewDense("fc", 3, 4, rng), randSeq(rng, 5, 3), 5, 4)
}

func TestConv1DGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	c := NewConv1D("conv", 2, 3, 3, 1, rng)
	assert.Equal(t, c.OutLen(6), 6)
	checkGradients(t, c, randSeq(rng, 6, 2), 6, 3)

	valid := NewConv1D("conv", 2, 3, 3, 0, rng)
	checkGradients(t, valid, randSeq(rng, 6, 2), 4, 3)
}

func TestLSTMGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	checkGradients(t, NewLSTM("lstm", 3, 4, rng), randSeq(rng, 5, 3), 5, 4)
}

func TestSequentialGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	tanh, err := NewAct("tanh")
	assert.NilError(t, err)
	softplus, err := NewAct("softplus")
	assert.NilError(t, err)
	net := Sequential{
		NewConv1D("conv", 2, 3, 2, 0, rng),
		tanh,
		NewLSTM("lstm", 3, 3, rng),
		LastStep{},
		NewDense("head", 3, 6, rng),
		softplus,
		Unflatten{Cols: 2},
	}
	checkGradients(t, net, randSeq(rng, 6, 2), 3, 2)
	assert.Equal(t, len(net.Params()), 7)
}

func TestFlattenRoundTrip(t *testing.T) {
	x := Seq{{1, 2}, {3, 4}, {5, 6}}
	y, back := Flatten{}.Forward(x, true)
	assert.DeepEqual(t, y, Seq{{1, 2, 3, 4, 5, 6}})
	assert.DeepEqual(t, back(y), x)
}

func TestDropout(t *testing.T) {
	d := &Dropout{P: 0.5, Rng: rand.New(rand.NewSource(5))}
	x := zeros(200, 5)
	for _, r := range x {
		for i := range r {
			r[i] = 1
		}
	}
	y, _ := d.Forward(x, false)
	assert.DeepEqual(t, y, x)

	y, back := d.Forward(x, true)
	zero, two := 0, 0
	for _, r := range y {
		for _, v := range r {
			switch v {
			case 0:
				zero++
			case 2:
				two++
			default:
				t.Fatalf("unexpected dropout output %v", v)
			}
		}
	}
	assert.Equal(t, zero+two, 1000)
	assert.Assert(t, zero > 400 && zero < 600, "dropped %d of 1000", zero)
	dx := back(x)
	for i := range y {
		for j := range y[i] {
			assert.Equal(t, dx[i][j], y[i][j])
		}
	}
}
