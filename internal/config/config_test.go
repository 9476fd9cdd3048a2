package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/rules"
)

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	assert.Empty(t, Check(cfg))
	assert.Empty(t, Lint(cfg))
	assert.Equal(t, "2025-06-30", cfg.Dates.EndDate)
	assert.Equal(t, []string{"Bronze", "Silver", "Gold", "Platinum"}, cfg.Vocab.LoyaltyTiers)
}

func TestDefault_Horizon(t *testing.T) {
	cfg := Default()

	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), cfg.End())
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -730), cfg.Start())
}

func TestParse_OverridesScalarsAndKeepsSiblings(t *testing.T) {
	cfg, err := Parse("test.yaml", []byte(`
seed: 7
parameters:
  conversion_rate: 0.5
lookup:
  customers:
    count: 12
`))
	require.NoError(t, err)

	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 0.5, cfg.Parameters.ConversionRate)
	assert.Equal(t, 12, cfg.Lookup.Customers.Count)
	// Siblings keep their defaults.
	assert.Equal(t, 0.25, cfg.Parameters.AbandonedCartEmptiedProb)
	assert.Equal(t, 0.1, cfg.Lookup.Customers.GuestShopperPct)
	assert.Equal(t, 20, cfg.Lookup.Products.PerCategory)
}

func TestParse_ReplacesDistributionsWholesale(t *testing.T) {
	cfg, err := Parse("test.yaml", []byte(`
parameters:
  order_channel_distribution:
    Web: 1
`))
	require.NoError(t, err)

	assert.Equal(t, rules.Distribution{"Web": 1}, cfg.Parameters.OrderChannelDistribution)
}

func TestParse_EmptyDocumentYieldsDefaults(t *testing.T) {
	cfg, err := Parse("empty.yaml", []byte("# nothing here\n"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestParse_SchemaRejectsUnknownKey(t *testing.T) {
	_, err := Parse("typo.yaml", []byte(`
parameters:
  conversion_rat: 0.5
`))
	require.Error(t, err)
	assert.True(t, generr.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "conversion_rat")
}

func TestParse_SchemaRejectsOutOfRangeProbability(t *testing.T) {
	_, err := Parse("range.yaml", []byte(`
parameters:
  conversion_rate: 1.5
`))
	require.Error(t, err)
	assert.True(t, generr.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "conversion_rate")
}

func TestParse_SchemaRejectsUnknownExportFormat(t *testing.T) {
	_, err := Parse("export.yaml", []byte(`
export:
  formats: [parquet]
`))
	require.Error(t, err)
	assert.True(t, generr.IsConfigurationError(err))
}

func TestParse_RejectsNonMappingDocument(t *testing.T) {
	_, err := Parse("list.yaml", []byte("- a\n- b\n"))
	require.Error(t, err)
	assert.True(t, generr.IsConfigurationError(err))
}

func TestParse_SemanticErrorsAreConfigurationErrors(t *testing.T) {
	_, err := Parse("ladder.yaml", []byte(`
parameters:
  tier_spend_thresholds:
    Bronze: 0
    Silver: 2000
    Gold: 1000
    Platinum: 5000
`))
	require.Error(t, err)

	var ce *generr.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "parameters.tier_spend_thresholds", ce.Field)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecomgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 99\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Seed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, generr.IsConfigurationError(err))
}

func TestCheck_UnresolvablePropensity(t *testing.T) {
	cfg := Default()
	cfg.Parameters.PropensityByChannelAndTier = rules.Stratified[float64]{
		Channels: map[string]rules.ChannelRule[float64]{
			"Website": {Default: ptr(0.5)},
		},
	}

	errs := Check(cfg)
	require.NotEmpty(t, errs)
	assert.Contains(t, codes(errs), ErrUnresolvableRule)
	for _, e := range errs {
		assert.Equal(t, "parameters.propensity_by_channel_and_tier", e.Field)
	}
}

func TestCheck_VocabularyConsistency(t *testing.T) {
	cfg := Default()
	cfg.Parameters.LoyaltyDistributionByChannel.Default = &rules.Distribution{"Diamond": 1}
	cfg.Parameters.CLVMap["Bronze"] = "Huge"

	errs := Check(cfg)
	assert.Contains(t, codes(errs), ErrUnknownVocab)
	assert.Len(t, errs, 2)
}

func TestCheck_MissingDefaults(t *testing.T) {
	cfg := Default()
	delete(cfg.Parameters.RefundBehaviorByReason, DefaultKey)
	delete(cfg.Parameters.ProcessingFees, DefaultKey)

	errs := Check(cfg)
	assert.Equal(t, []string{ErrMissingDefault, ErrMissingDefault}, codes(errs))
}

func TestCheck_PhoneRequiresAgents(t *testing.T) {
	cfg := Default()
	cfg.Vocab.Agents = nil

	errs := Check(cfg)
	assert.Equal(t, []string{ErrMissingAgents}, codes(errs))
}

func TestCheck_ReturnTimingBuckets(t *testing.T) {
	cfg := Default()
	cfg.Parameters.ReturnTimingDistribution = rules.Distribution{"30": 1, "60": 1}

	errs := Check(cfg)
	assert.Equal(t, []string{ErrInvalidBucket}, codes(errs))
}

func TestCheck_AllZeroDistribution(t *testing.T) {
	cfg := Default()
	cfg.Parameters.ShippingSpeedDistribution = rules.Distribution{"Standard": 0}

	errs := Check(cfg)
	assert.Contains(t, codes(errs), ErrInvalidDistribution)
}

func TestLint_Unnormalized(t *testing.T) {
	cfg := Default()
	cfg.Parameters.OrderChannelDistribution = rules.Distribution{"Web": 3, "Mobile": 1, "Phone": 1}

	warnings := Lint(cfg)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnUnnormalized, warnings[0].Code)
}

func TestReturnBucketFor(t *testing.T) {
	b, err := ReturnBucketFor("30")
	require.NoError(t, err)
	assert.Equal(t, ReturnBucket{Lo: 0, Hi: 30}, b)

	b, err = ReturnBucketFor("365")
	require.NoError(t, err)
	assert.Equal(t, ReturnBucket{Lo: 90, Hi: 365}, b)

	_, err = ReturnBucketFor("45")
	assert.Error(t, err)
	_, err = ReturnBucketFor("soon")
	assert.Error(t, err)
}

func TestKeyed_FallsBackToDefault(t *testing.T) {
	m := map[string]float64{"default": 0.1, "Website": 0.2}

	v, ok := Keyed(m, "Website")
	assert.True(t, ok)
	assert.Equal(t, 0.2, v)

	v, ok = Keyed(m, "Phone")
	assert.True(t, ok)
	assert.Equal(t, 0.1, v)

	_, ok = Keyed(map[string]float64{}, "Phone")
	assert.False(t, ok)
}

func TestChannelRule_Allows(t *testing.T) {
	open := ChannelRule{}
	assert.True(t, open.Allows("PayPal"))

	phone := ChannelRule{AllowedPaymentMethods: []string{"Credit Card", "ACH"}}
	assert.True(t, phone.Allows("ACH"))
	assert.False(t, phone.Allows("PayPal"))
}

func ptr[T any](v T) *T { return &v }
