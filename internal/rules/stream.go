package rules

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Stream returns a random stream partitioned from seed by key.
//
// The stream is seeded with seed XOR fnv64a(key), so two keys never share
// state and the output for a key does not depend on how many other streams
// were created before it or on which goroutine consumes it.
func Stream(seed uint64, key string) *rand.Rand {
	h := KeyHash(key)
	return rand.New(rand.NewPCG(seed^h, h))
}

// KeyHash returns the 64-bit FNV-1a hash of key.
func KeyHash(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}

// Bernoulli reports whether a draw succeeds with probability p.
// p is clamped into [0, 1]; p <= 0 never succeeds, p >= 1 always succeeds.
func Bernoulli(r *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// UniformInt draws an integer uniformly from the closed range [lo, hi].
func UniformInt(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// UniformFloat draws a float uniformly from [lo, hi).
func UniformFloat(r *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// UniformMoney draws a monetary amount uniformly from [lo, hi], rounded to cents.
func UniformMoney(r *rand.Rand, lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(UniformFloat(r, lo, hi)).Round(2)
}

// Pick returns a uniformly chosen element of items.
// Panics if items is empty; callers validate non-empty vocabularies up front.
func Pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

// Clamp01 clamps p into [0, 1].
func Clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
