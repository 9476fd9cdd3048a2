package rules

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/roach88/ecomgen/internal/generr"
)

// Distribution maps a category to its (not necessarily normalized) weight.
type Distribution map[string]float64

// Keys returns the categories in sorted order.
// Sorting keeps draws independent of Go's randomized map iteration.
func (d Distribution) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total returns the sum of the positive weights.
func (d Distribution) Total() float64 {
	total := 0.0
	for _, w := range d {
		if w > 0 {
			total += w
		}
	}
	return total
}

// Check validates the distribution without drawing from it.
// name is used as the configuration field in the returned error.
func (d Distribution) Check(name string) error {
	if len(d) == 0 {
		return generr.NewConfigurationError(name, "distribution is empty")
	}
	for _, k := range d.Keys() {
		w := d[k]
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return generr.NewConfigurationError(name, "weight for %q must be a finite non-negative number, got %v", k, w)
		}
	}
	if d.Total() <= 0 {
		return generr.NewConfigurationError(name, "all weights are zero")
	}
	return nil
}

// Normalized returns a copy whose weights sum to 1.
func (d Distribution) Normalized() (Distribution, error) {
	if err := d.Check(""); err != nil {
		return nil, err
	}
	total := d.Total()
	out := make(Distribution, len(d))
	for k, w := range d {
		out[k] = w / total
	}
	return out, nil
}

// Probability returns the normalized weight of key, 0 if absent.
func (d Distribution) Probability(key string) float64 {
	total := d.Total()
	if total <= 0 || d[key] <= 0 {
		return 0
	}
	return d[key] / total
}

// SampleWeighted draws one key from dist.
// Weights are normalized internally; an empty, negative or all-zero
// distribution is reported as a ConfigurationError.
func SampleWeighted(r *rand.Rand, dist Distribution) (string, error) {
	if err := dist.Check(""); err != nil {
		return "", err
	}

	keys := dist.Keys()
	u := r.Float64() * dist.Total()
	cum := 0.0
	last := ""
	for _, k := range keys {
		w := dist[k]
		if w <= 0 {
			continue
		}
		cum += w
		last = k
		if u < cum {
			return k, nil
		}
	}
	// Floating point accumulation can leave u == total.
	return last, nil
}

// SampleWeightedExcept draws from dist restricted to the keys allowed by keep.
// Returns ok=false when no allowed key carries positive weight.
func SampleWeightedExcept(r *rand.Rand, dist Distribution, keep func(string) bool) (string, bool) {
	sub := make(Distribution, len(dist))
	for k, w := range dist {
		if keep(k) && w > 0 {
			sub[k] = w
		}
	}
	if len(sub) == 0 {
		return "", false
	}
	key, err := SampleWeighted(r, sub)
	if err != nil {
		return "", false
	}
	return key, true
}
