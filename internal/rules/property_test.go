package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// TestLadderMonotonic verifies earned level rank never decreases with spend.
// Property: a <= b ⇒ rank(Level(a)) <= rank(Level(b))
func TestLadderMonotonic(t *testing.T) {
	ladder, err := NewLadder("tier_spend_thresholds",
		map[string]float64{"Bronze": 0, "Silver": 500, "Gold": 1500, "Platinum": 5000}, tierOrder)
	if err != nil {
		t.Fatal(err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tier rank is non-decreasing in spend", prop.ForAll(
		func(a, b int64) bool {
			if a > b {
				a, b = b, a
			}
			la := ladder.Level(decimal.New(a, -2))
			lb := ladder.Level(decimal.New(b, -2))
			return ladder.Rank(la) <= ladder.Rank(lb)
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// TestDelayAlwaysWithinRange verifies clamping for arbitrary seeds and sigmas.
func TestDelayAlwaysWithinRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("delay lies within the configured range", prop.ForAll(
		func(seed uint64, sigma float64, lo int) bool {
			rule := DelayRule{Range: Range{float64(lo), float64(lo + 90)}, Sigma: sigma}
			d := SampleLognormalDelay(Stream(seed, "p"), rule)
			return d >= rule.Range.Lo() && d <= rule.Range.Hi()
		},
		gen.UInt64(),
		gen.Float64Range(0, 5),
		gen.IntRange(1, 400),
	))

	properties.TestingRun(t)
}

// TestSampleWeightedReturnsPositiveKey verifies a drawn key always has positive weight.
func TestSampleWeightedReturnsPositiveKey(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("drawn key carries positive weight", prop.ForAll(
		func(seed uint64, a, b, c float64) bool {
			dist := Distribution{"a": a, "b": b, "c": c}
			k, err := SampleWeighted(Stream(seed, "w"), dist)
			if dist.Total() <= 0 {
				return err != nil
			}
			return err == nil && dist[k] > 0
		},
		gen.UInt64(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
