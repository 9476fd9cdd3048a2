package audit_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/pipeline"
	"github.com/roach88/ecomgen/internal/rules"
	"github.com/roach88/ecomgen/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// generate returns a fresh clean dataset for the fixture configuration.
func generate(t *testing.T) (*model.Dataset, *config.Config) {
	t.Helper()

	cfg := testutil.SmallConfig(t)
	ds, err := pipeline.Generate(context.Background(), cfg, pipeline.WithLogger(quiet))
	require.NoError(t, err)
	require.NotEmpty(t, ds.Orders)
	require.NotEmpty(t, ds.Returns)
	return ds, cfg
}

func run(t *testing.T, ds *model.Dataset, cfg *config.Config, opts audit.Options) *audit.Report {
	t.Helper()

	if opts.Logger == nil {
		opts.Logger = quiet
	}
	r, err := audit.Audit(ds, cfg, opts)
	require.NoError(t, err)
	return r
}

func TestAudit_CleanDataset(t *testing.T) {
	ds, cfg := generate(t)
	r := run(t, ds, cfg, audit.Options{})

	assert.Empty(t, r.Failed(audit.Deterministic))
	require.NoError(t, r.Err())

	names := map[string]bool{}
	for _, c := range r.Checks {
		names[c.Name] = true
	}
	for _, want := range []string{
		"primary_key/orders(order_id)",
		"unique/orders(cart_id)",
		"unique/order_items(order_id,line_number)",
		"foreign_key/return_items.order_item_id",
		"row_schema/customers",
		"cart_totals",
		"order_arithmetic",
		"return_arithmetic",
		"returned_quantities",
		"temporal_order",
		"customer_event_order",
		"earned_status",
		"conversion_rate",
		"emptied_share",
		"return_rate",
	} {
		assert.True(t, names[want], "missing check %s", want)
	}
}

func TestAudit_Corruptions(t *testing.T) {
	tests := []struct {
		name    string
		check   string
		corrupt func(t *testing.T, ds *model.Dataset, cfg *config.Config)
	}{
		{
			name:  "duplicate primary key",
			check: "primary_key/shopping_carts(cart_id)",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				ds.Carts = append(ds.Carts, ds.Carts[0])
			},
		},
		{
			name:  "second order for a cart",
			check: "unique/orders(cart_id)",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				dup := ds.Orders[0]
				dup.OrderID += "-X"
				ds.Orders = append(ds.Orders, dup)
			},
		},
		{
			name:  "orphan product reference",
			check: "foreign_key/cart_items.product_id",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				ds.CartItems[0].ProductID = "PROD-9999"
			},
		},
		{
			name:  "net total off by a cent",
			check: "order_arithmetic",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				ds.Orders[0].NetTotal = ds.Orders[0].NetTotal.Add(decimal.RequireFromString("0.01"))
			},
		},
		{
			name:  "emptied cart with items",
			check: "cart_totals",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				for i, c := range ds.Carts {
					if c.Status == model.CartAbandoned {
						ds.Carts[i].Status = model.CartEmptied
						return
					}
				}
				t.Fatal("fixture has no abandoned cart")
			},
		},
		{
			name:  "refund does not match items",
			check: "return_arithmetic",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				ds.Returns[0].RefundedAmount = ds.Returns[0].RefundedAmount.Add(decimal.NewFromInt(1))
			},
		},
		{
			name:  "more units returned than ordered",
			check: "returned_quantities",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				it := &ds.ReturnItems[0]
				for _, l := range ds.OrderItems {
					if l.OrderItemID == it.OrderItemID {
						it.QuantityReturned = l.Quantity + 1
						return
					}
				}
				t.Fatal("return item without order line")
			},
		},
		{
			name:  "order before its cart",
			check: "temporal_order",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				for _, c := range ds.Carts {
					if c.CartID == ds.Orders[0].CartID {
						ds.Orders[0].OrderDate = c.CreatedAt.Add(-time.Hour)
						return
					}
				}
			},
		},
		{
			name:  "tier not earned by spend",
			check: "earned_status",
			corrupt: func(t *testing.T, ds *model.Dataset, cfg *config.Config) {
				for i, c := range ds.Customers {
					if c.IsGuest {
						continue
					}
					for _, tier := range cfg.Vocab.LoyaltyTiers {
						if tier != c.LoyaltyTier {
							ds.Customers[i].LoyaltyTier = tier
							return
						}
					}
				}
				t.Fatal("fixture has no registered customer")
			},
		},
		{
			name:  "money with three decimals",
			check: "row_schema/products",
			corrupt: func(t *testing.T, ds *model.Dataset, _ *config.Config) {
				ds.Products[0].UnitPrice = decimal.RequireFromString("12345.678")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, cfg := generate(t)
			tt.corrupt(t, ds, cfg)

			r := run(t, ds, cfg, audit.Options{})
			assert.Contains(t, r.Failed(audit.Deterministic), tt.check)

			err := r.Err()
			require.Error(t, err)
			assert.True(t, generr.IsIntegrityError(err))
			assert.Contains(t, err.Error(), tt.check)
		})
	}
}

type fixedModel float64

func (m fixedModel) ExpectedRate(audit.Segment, int) float64 { return float64(m) }

func TestAudit_StatisticalDeviation(t *testing.T) {
	ds, cfg := generate(t)
	cfg.Validation.MinSegmentSize = 1

	r := run(t, ds, cfg, audit.Options{Model: fixedModel(1)})
	require.NoError(t, r.Err(), "deviations only warn outside strict mode")
	require.NotEmpty(t, r.Warnings())
	assert.Positive(t, r.Summary().Warn)
	assert.Empty(t, r.Failed(audit.Statistical))
	for _, w := range r.Warnings() {
		assert.Greater(t, math.Abs(w.Observed-w.Expected), w.Tolerance, w.Check)
	}

	strict := run(t, ds, cfg, audit.Options{Model: fixedModel(1), Strict: true})
	assert.Zero(t, strict.Summary().Warn)
	assert.NotEmpty(t, strict.Failed(audit.Statistical))
	err := strict.Err()
	require.Error(t, err)
	assert.True(t, generr.IsStatisticalWarning(err))
	assert.False(t, generr.IsIntegrityError(err))
}

func TestAudit_StrictFromConfig(t *testing.T) {
	ds, cfg := generate(t)
	cfg.Validation.Strict = true

	r := run(t, ds, cfg, audit.Options{})
	assert.True(t, r.Strict)
}

func TestAudit_SmallSegmentsSkipped(t *testing.T) {
	ds, cfg := generate(t)
	cfg.Validation.MinSegmentSize = math.MaxInt32

	r := run(t, ds, cfg, audit.Options{Model: fixedModel(1), Strict: true})
	require.NoError(t, r.Err())
	for _, c := range r.Checks {
		if c.Class == audit.Statistical {
			assert.Equal(t, audit.StatusPass, c.Status, c.Name)
			assert.Contains(t, c.Message, "skipped", c.Name)
		}
	}
}

func TestReport_Summary(t *testing.T) {
	r := &audit.Report{Checks: []audit.CheckResult{
		{Name: "a", Class: audit.Deterministic, Status: audit.StatusPass},
		{Name: "b", Class: audit.Deterministic, Status: audit.StatusFail},
		{Name: "c", Class: audit.Statistical, Status: audit.StatusWarn},
		{Name: "d", Class: audit.Statistical, Status: audit.StatusFail},
	}}

	assert.Equal(t, audit.Summary{Pass: 1, Warn: 1, Fail: 2}, r.Summary())
	assert.Equal(t, []string{"b"}, r.Failed(audit.Deterministic))
	assert.Equal(t, []string{"d"}, r.Failed(audit.Statistical))

	var ie *generr.IntegrityError
	require.ErrorAs(t, r.Err(), &ie)
	assert.Equal(t, []string{"b"}, ie.Checks)
}

func TestZeroInflatedModel(t *testing.T) {
	params := func(p, q float64) *config.Parameters {
		return &config.Parameters{
			PropensityByChannelAndTier: rules.Uniform(p),
			TimeDelayByChannelAndTier:  rules.Uniform(rules.DelayRule{Range: rules.Range{5, 20}, Sigma: 0.5}),
			ReactivationSettings: config.Reactivation{
				Probability:    q,
				DelayDaysRange: rules.Range{60, 120},
				Sigma:          0.3,
			},
		}
	}
	seg := func(horizons ...int) audit.Segment {
		return audit.Segment{Channel: "Website", Tier: "Gold", Horizons: horizons}
	}

	t.Run("certain return inside a wide horizon", func(t *testing.T) {
		m := audit.ZeroInflatedModel{Params: params(1, 0)}
		assert.InDelta(t, 1, m.ExpectedRate(seg(365, 365), 2), 1e-9)
	})
	t.Run("nobody returns", func(t *testing.T) {
		m := audit.ZeroInflatedModel{Params: params(0, 0)}
		assert.Zero(t, m.ExpectedRate(seg(365), 1))
	})
	t.Run("no room before the horizon", func(t *testing.T) {
		m := audit.ZeroInflatedModel{Params: params(1, 1)}
		assert.Zero(t, m.ExpectedRate(seg(0, -3), 2))
	})
	t.Run("churn mass", func(t *testing.T) {
		// Both branches fit: p + (1-p)q.
		m := audit.ZeroInflatedModel{Params: params(0.6, 0.25)}
		assert.InDelta(t, 0.7, m.ExpectedRate(seg(365), 1), 1e-9)
	})
	t.Run("reactivation censored by the horizon", func(t *testing.T) {
		// Regular delays are at most 20 days, reactivations at least 60.
		m := audit.ZeroInflatedModel{Params: params(0.6, 0.25)}
		assert.InDelta(t, 0.6, m.ExpectedRate(seg(30), 1), 1e-9)
	})
	t.Run("only the observed exposures count", func(t *testing.T) {
		m := audit.ZeroInflatedModel{Params: params(1, 0)}
		assert.InDelta(t, 1, m.ExpectedRate(seg(365, 0, 0), 1), 1e-9)
		assert.Zero(t, m.ExpectedRate(seg(365), 0))
	})
}
