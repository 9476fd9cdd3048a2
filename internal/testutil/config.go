// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ecomgen/internal/config"
)

// SmallConfig returns the default configuration scaled down so a full
// run completes in well under a second. Overrides are applied in order
// and the result is re-checked.
func SmallConfig(t testing.TB, overrides ...func(*config.Config)) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Seed = 1234
	cfg.Lookup.Customers.Count = 80
	cfg.Lookup.Customers.GuestContactPoolSize = 5
	cfg.Lookup.Products.PerCategory = 4
	cfg.Simulation.Workers = 3
	cfg.Validation.MinSegmentSize = 10

	for _, o := range overrides {
		o(cfg)
	}

	errs := config.Check(cfg)
	require.Empty(t, errs, "fixture config must be valid")
	return cfg
}

// ParseConfig parses a YAML override document over the defaults and fails
// the test on error.
func ParseConfig(t testing.TB, doc string) *config.Config {
	t.Helper()

	cfg, err := config.Parse("fixture.yaml", []byte(doc))
	require.NoError(t, err)
	return cfg
}
