package fu

import (
	"math/rand"
	"time"
)

// stream ids used to derive independent generators from one seed
const (
	SplitStream int64 = iota + 1
	ShuffleStream
	InitStream
	DropoutStream
)

/*
Rand returns a generator for the stream derived from seed.
The same seed and stream always produce the same sequence.
*/
func Rand(seed, stream int64) *rand.Rand {
	return rand.New(rand.NewSource(seed*7919 + stream*104729))
}

/*
NewSeed draws a fresh seed from the clock
*/
func NewSeed() int64 {
	return time.Now().UnixNano() & 0x7fffffff
}
