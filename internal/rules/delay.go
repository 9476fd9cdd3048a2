package rules

import (
	"math"
	"math/rand/v2"
)

// Range is a closed numeric interval written in YAML as a two-element list.
type Range []float64

// Lo returns the lower bound.
func (r Range) Lo() float64 { return r[0] }

// Hi returns the upper bound.
func (r Range) Hi() float64 { return r[1] }

// Valid reports whether the range has two finite bounds with lo <= hi.
func (r Range) Valid() bool {
	if len(r) != 2 {
		return false
	}
	for _, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r[0] <= r[1]
}

// Mid returns the midpoint of the range.
func (r Range) Mid() float64 { return (r[0] + r[1]) / 2 }

// IntRange is a closed integer interval written in YAML as a two-element list.
type IntRange []int

// Lo returns the lower bound.
func (r IntRange) Lo() int { return r[0] }

// Hi returns the upper bound.
func (r IntRange) Hi() int { return r[1] }

// Valid reports whether the range has two bounds with lo <= hi.
func (r IntRange) Valid() bool { return len(r) == 2 && r[0] <= r[1] }

// Draw returns a uniform integer in the range.
func (r IntRange) Draw(rng *rand.Rand) int { return UniformInt(rng, r[0], r[1]) }

// DelayRule parameterizes a log-normal delay in days.
// The median of the underlying log-normal is the midpoint of Range; draws
// are clamped into Range to bound tail extremity.
type DelayRule struct {
	Range Range   `yaml:"range"`
	Sigma float64 `yaml:"sigma"`
}

// mu returns the log-scale location of the rule's log-normal.
func (d DelayRule) mu() float64 {
	return math.Log(d.Range.Mid())
}

// Valid reports whether the rule can be sampled.
func (d DelayRule) Valid() bool {
	return d.Range.Valid() && d.Range.Lo() > 0 && d.Sigma >= 0 && !math.IsNaN(d.Sigma)
}

// SampleLognormalDelay draws a delay in (fractional) days.
func SampleLognormalDelay(r *rand.Rand, d DelayRule) float64 {
	x := math.Exp(d.mu() + d.Sigma*r.NormFloat64())
	return clamp(x, d.Range.Lo(), d.Range.Hi())
}

// DelayDays draws a delay and rounds it to whole days, never less than one.
// Whole-day steps keep every later visit strictly after the previous one.
func DelayDays(r *rand.Rand, d DelayRule) int {
	days := int(math.Round(SampleLognormalDelay(r, d)))
	if days < 1 {
		days = 1
	}
	return days
}

// LognormalCDF returns P(clamped delay <= t) for the rule.
func LognormalCDF(d DelayRule, t float64) float64 {
	lo, hi := d.Range.Lo(), d.Range.Hi()
	switch {
	case t < lo:
		return 0
	case t >= hi:
		return 1
	}
	if d.Sigma == 0 {
		if t >= d.Range.Mid() {
			return 1
		}
		return 0
	}
	z := (math.Log(t) - d.mu()) / d.Sigma
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// DelayDaysCDF returns P(DelayDays(r, d) <= days).
// It mirrors DelayDays exactly: rounding to nearest and the one-day floor.
func DelayDaysCDF(d DelayRule, days int) float64 {
	if days < 1 {
		return 0
	}
	// round(x) <= n  ⇔  x < n + 0.5; strict, so clamp atoms at the bounds
	// only count when they lie below the cut.
	t := float64(days) + 0.5
	lo, hi := d.Range.Lo(), d.Range.Hi()
	switch {
	case t <= lo:
		return 0
	case t > hi:
		return 1
	}
	if d.Sigma == 0 {
		if d.Range.Mid() < t {
			return 1
		}
		return 0
	}
	z := (math.Log(t) - d.mu()) / d.Sigma
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
