// Package audit validates a generated dataset.
//
// Deterministic checks (keys, row schemas, money arithmetic, temporal
// order, earned status) must hold exactly; any failure makes the dataset
// unusable. Statistical checks compare observed rates with the rates the
// configuration implies, inside a band of max(epsilon, z·σ). A deviation is
// a warning unless strict mode promotes it to a failure.
package audit

import (
	"fmt"
	"log/slog"

	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/model"
)

// Options tunes an audit.
type Options struct {
	// Strict promotes statistical deviations to failures. It is ORed with
	// validation.strict from the configuration.
	Strict bool

	// Model computes expected repeat-visit rates. Nil selects
	// ZeroInflatedModel over the configuration's parameters.
	Model RateModel

	Logger *slog.Logger
}

// Audit runs every check against ds. The returned error reports a problem
// running the audit itself; check outcomes are in the report, and
// Report.Err tells whether they amount to a failure.
func Audit(ds *model.Dataset, cfg *config.Config, opts Options) (*Report, error) {
	tiers, err := cfg.TierLadder()
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	clv, err := cfg.CLVLadder()
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	rm := opts.Model
	if rm == nil {
		rm = ZeroInflatedModel{Params: &cfg.Parameters}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Report{Strict: cfg.Validation.Strict || opts.Strict}
	ix := newIndex(ds)
	end := cfg.End()

	checkKeys(r, ds.Tables())
	checkRowSchemas(r, ds)
	checkProducts(r, ds)
	checkCarts(r, ds, ix)
	checkConversions(r, ds, ix)
	checkOrders(r, ds, ix)
	checkReturns(r, ds, ix)
	checkTemporal(r, ds, ix, end)
	checkEarnedStatus(r, ds, tiers, clv)

	checkConversion(r, cfg, ix)
	checkEmptied(r, cfg, ds)
	checkRepeat(r, cfg, ix, rm, end)
	checkReturnRate(r, cfg, ds, ix)

	s := r.Summary()
	logger.Info("audit complete",
		"checks", len(r.Checks),
		"pass", s.Pass,
		"warn", s.Warn,
		"fail", s.Fail,
		"strict", r.Strict)
	for _, c := range r.Checks {
		switch c.Status {
		case StatusFail:
			logger.Error("check failed", "check", c.Name, "class", c.Class, "message", c.Message)
		case StatusWarn:
			logger.Warn("check deviated", "check", c.Name, "message", c.Message)
		}
	}
	return r, nil
}
