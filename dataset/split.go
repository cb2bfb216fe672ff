package dataset

import (
	"math"

	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/zlog"
	"golang.org/x/xerrors"
)

/*
Split is a partition of window indices into disjoint train and validation
sets covering every window exactly once
*/
type Split struct {
	Train      []int
	Validation []int
	Fraction   float64 // validation share
	Shuffled   bool
	Seed       int64
}

/*
NewSplit partitions n window indices. floor(n*fraction) windows go to
validation. Without shuffling validation is the chronological tail;
with shuffling indices are permuted by a generator derived from seed first.
*/
func NewSplit(n int, fraction float64, shuffle bool, seed int64) (*Split, error) {
	if fraction < 0 || fraction >= 1 || math.IsNaN(fraction) {
		return nil, xerrors.Errorf("validation fraction must be in [0,1), got %v", fraction)
	}
	idx := fu.Iota(n)
	if shuffle {
		rng := fu.Rand(seed, fu.SplitStream)
		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	nv := int(math.Floor(float64(n) * fraction))
	s := &Split{
		Train:      idx[: n-nv : n-nv],
		Validation: idx[n-nv:],
		Fraction:   fraction,
		Shuffled:   shuffle,
		Seed:       seed,
	}
	if nv == 0 {
		zlog.Warning("validation split is empty", "windows", n, "fraction", fraction)
	}
	return s, nil
}
