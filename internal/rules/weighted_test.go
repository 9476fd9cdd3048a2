package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecomgen/internal/generr"
)

func TestSampleWeighted_Deterministic(t *testing.T) {
	dist := Distribution{"Web": 0.6, "Phone": 0.2, "Mobile": 0.2}

	a := Stream(42, "orders")
	b := Stream(42, "orders")
	for i := 0; i < 100; i++ {
		ka, err := SampleWeighted(a, dist)
		require.NoError(t, err)
		kb, err := SampleWeighted(b, dist)
		require.NoError(t, err)
		assert.Equal(t, ka, kb)
	}
}

func TestSampleWeighted_ZeroWeightNeverDrawn(t *testing.T) {
	dist := Distribution{"A": 1, "B": 0}
	r := Stream(1, "zero")
	for i := 0; i < 500; i++ {
		k, err := SampleWeighted(r, dist)
		require.NoError(t, err)
		assert.Equal(t, "A", k)
	}
}

func TestSampleWeighted_UnnormalizedMatchesFrequencies(t *testing.T) {
	dist := Distribution{"A": 3, "B": 1}
	r := Stream(7, "freq")

	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		k, err := SampleWeighted(r, dist)
		require.NoError(t, err)
		counts[k]++
	}
	assert.InDelta(t, 0.75, float64(counts["A"])/n, 0.02)
}

func TestSampleWeighted_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
	}{
		{"empty", Distribution{}},
		{"all zero", Distribution{"A": 0, "B": 0}},
		{"negative", Distribution{"A": 1, "B": -0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SampleWeighted(Stream(1, "x"), tt.dist)
			require.Error(t, err)
			assert.True(t, generr.IsConfigurationError(err))
		})
	}
}

func TestSampleWeightedExcept(t *testing.T) {
	dist := Distribution{"Credit Card": 0.5, "PayPal": 0.3, "Cash": 0.2}
	r := Stream(3, "except")

	for i := 0; i < 200; i++ {
		k, ok := SampleWeightedExcept(r, dist, func(k string) bool { return k != "Cash" })
		require.True(t, ok)
		assert.NotEqual(t, "Cash", k)
	}

	_, ok := SampleWeightedExcept(r, dist, func(string) bool { return false })
	assert.False(t, ok)
}

func TestDistribution_Probability(t *testing.T) {
	dist := Distribution{"A": 2, "B": 6}
	assert.InDelta(t, 0.25, dist.Probability("A"), 1e-12)
	assert.Equal(t, 0.0, dist.Probability("C"))

	norm, err := dist.Normalized()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, norm["B"], 1e-12)
}

func TestStream_KeysAreIndependent(t *testing.T) {
	a := Stream(42, "CUST-00001")
	b := Stream(42, "CUST-00002")
	same := 0
	for i := 0; i < 50; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	assert.Zero(t, same)
}
