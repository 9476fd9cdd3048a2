package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/testutil"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func TestRun_CleanDatasetPassesAudit(t *testing.T) {
	cfg := testutil.SmallConfig(t)

	res, err := Run(context.Background(), cfg, quiet)
	require.NoError(t, err)
	require.NotNil(t, res.Dataset)

	assert.Empty(t, res.Report.Failed(audit.Deterministic))
	assert.Equal(t, res.RunID, res.Report.RunID)
	assert.NotEmpty(t, res.Digest)
	assert.Len(t, res.Dataset.Customers, cfg.Lookup.Customers.Count)
	assert.NotEmpty(t, res.Dataset.Orders)
	assert.NotEmpty(t, res.Dataset.Returns)
}

func TestRun_Idempotent(t *testing.T) {
	cfg := testutil.SmallConfig(t)

	first, err := Run(context.Background(), cfg, quiet)
	require.NoError(t, err)
	second, err := Run(context.Background(), cfg, quiet)
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.ConfigDigest, second.ConfigDigest)
}

func TestRun_SeedChangesDigest(t *testing.T) {
	a, err := Run(context.Background(), testutil.SmallConfig(t), quiet)
	require.NoError(t, err)
	b, err := Run(context.Background(), testutil.SmallConfig(t, func(c *config.Config) { c.Seed++ }), quiet)
	require.NoError(t, err)

	assert.NotEqual(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestGenerate_IndependentOfWorkerCount(t *testing.T) {
	cfg := testutil.SmallConfig(t)

	serial, err := Generate(context.Background(), cfg, quiet, WithWorkers(1))
	require.NoError(t, err)
	parallel, err := Generate(context.Background(), cfg, quiet, WithWorkers(8))
	require.NoError(t, err)

	d1, err := serial.Digest()
	require.NoError(t, err)
	d2, err := parallel.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestRun_CancelledContext(t *testing.T) {
	cfg := testutil.SmallConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, cfg, quiet)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRun_StrictPromotesDeviations(t *testing.T) {
	cfg := testutil.SmallConfig(t, func(c *config.Config) {
		c.Validation.MinSegmentSize = 1
	})
	// A customer's last visit is never followed by another.
	always := rateModelFunc(func(audit.Segment, int) float64 { return 1 })

	res, err := Run(context.Background(), cfg, quiet, WithStrict(true), WithRateModel(always))
	require.Error(t, err)
	assert.False(t, generr.IsIntegrityError(err))
	assert.True(t, generr.IsStatisticalWarning(err))
	require.NotNil(t, res)
	assert.Nil(t, res.Dataset)
	assert.NotEmpty(t, res.Report.Failed(audit.Statistical))

	res, err = Run(context.Background(), cfg, quiet, WithRateModel(always))
	require.NoError(t, err)
	assert.Positive(t, res.Report.Summary().Warn)
	assert.NotNil(t, res.Dataset)
}

func TestIdentity_StableAcrossLoads(t *testing.T) {
	a := testutil.SmallConfig(t)
	b := testutil.SmallConfig(t)

	da, ra, err := Identity(a)
	require.NoError(t, err)
	db, rb, err := Identity(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, ra, rb)
	assert.Equal(t, model.RunID(a.Seed, da), ra)
}

func TestIdentity_IgnoresWorkersAndExport(t *testing.T) {
	base := testutil.SmallConfig(t)
	moved := testutil.SmallConfig(t, func(c *config.Config) {
		c.Simulation.Workers = 1
		c.Export.OutputDir = "/elsewhere"
		c.Export.Formats = []string{"xlsx"}
		c.Export.SQLitePath = "/elsewhere/db.sqlite"
		c.Export.Messiness = "heavy_mess"
	})

	d1, r1, err := Identity(base)
	require.NoError(t, err)
	d2, r2, err := Identity(moved)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 3, base.Simulation.Workers, "Identity must not modify its argument")

	reseeded := testutil.SmallConfig(t, func(c *config.Config) { c.Seed++ })
	d3, r3, err := Identity(reseeded)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
	assert.NotEqual(t, r1, r3)
}

type rateModelFunc func(audit.Segment, int) float64

func (f rateModelFunc) ExpectedRate(seg audit.Segment, n int) float64 { return f(seg, n) }
