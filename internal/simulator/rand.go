// Package simulator generates synthetic render projects and advances them tick by tick.
//
// Everything here is a pure function of its inputs: the random source and the wall-clock
// time are passed in, so a seeded Rand and a fixed time give reproducible trees.
package simulator

import (
	"math/rand/v2"
)

// Rand is the random source used by generation and ticking.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n). Panics if n <= 0.
	IntN(n int) int
}

// NewRand returns a PCG-backed source. A zero seed draws a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// IntRange is an inclusive integer range used for random counts.
type IntRange struct {
	Min int `validate:"gte=0"`
	Max int `validate:"gtefield=Min"`
}

// Pick draws a value in [Min, Max].
func (r IntRange) Pick(rng Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.IntN(r.Max-r.Min+1)
}
