// Package pipeline runs one generation end to end: lookup tables, funnel
// simulation, earned status, returns and the audit.
//
// A run is all or nothing. Run returns either a complete dataset whose
// audit found no deterministic failure, or an error and no dataset.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/funnel"
	"github.com/roach88/ecomgen/internal/lookup"
	"github.com/roach88/ecomgen/internal/model"
	"github.com/roach88/ecomgen/internal/orders"
)

// Option configures a run.
type Option func(*runner)

// WithLogger sets the logger of the run and its stages.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		r.logger = logger
	}
}

// WithWorkers overrides simulation.workers.
func WithWorkers(n int) Option {
	return func(r *runner) {
		r.workers = n
	}
}

// WithStrict promotes statistical deviations to failures.
func WithStrict(strict bool) Option {
	return func(r *runner) {
		r.strict = strict
	}
}

// WithRateModel replaces the audit's repeat-visit rate model.
func WithRateModel(m audit.RateModel) Option {
	return func(r *runner) {
		r.model = m
	}
}

type runner struct {
	logger  *slog.Logger
	workers int
	strict  bool
	model   audit.RateModel
}

func newRunner(cfg *config.Config, opts []Option) *runner {
	r := &runner{
		logger:  slog.Default(),
		workers: cfg.Simulation.Workers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of a run.
type Result struct {
	RunID        string
	ConfigDigest string
	Digest       string
	Dataset      *model.Dataset
	Report       *audit.Report
}

// Identity returns the configuration digest and run ID of cfg. Only the
// settings that shape the dataset and its audit count: the worker count
// and the export section are left out, so equal datasets share an
// identity.
func Identity(cfg *config.Config) (configDigest, runID string, err error) {
	shaping := *cfg
	shaping.Simulation.Workers = 0
	shaping.Export = config.ExportSettings{}
	data, err := yaml.Marshal(&shaping)
	if err != nil {
		return "", "", fmt.Errorf("serialize config: %w", err)
	}
	configDigest = model.ConfigDigest(data)
	return configDigest, model.RunID(cfg.Seed, configDigest), nil
}

// Generate builds the dataset without auditing it.
func Generate(ctx context.Context, cfg *config.Config, opts ...Option) (*model.Dataset, error) {
	return newRunner(cfg, opts).generate(ctx, cfg)
}

func (r *runner) generate(ctx context.Context, cfg *config.Config) (*model.Dataset, error) {
	tables, err := lookup.Generate(cfg)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("lookup tables generated",
		"customers", tables.Customers.Len(),
		"products", tables.Products.Len())

	sim, err := funnel.New(cfg, tables, funnel.WithLogger(r.logger), funnel.WithWorkers(r.workers))
	if err != nil {
		return nil, err
	}
	results, err := sim.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	tiers, clv := sim.Ladders()
	if err := funnel.EarnTiers(tables.Customers, results, tiers, clv); err != nil {
		return nil, err
	}

	ds := &model.Dataset{
		Customers: tables.Customers.All(),
		Products:  tables.Products.All(),
	}
	for i := range results {
		res := &results[i]
		ds.Carts = append(ds.Carts, res.Carts...)
		ds.CartItems = append(ds.CartItems, res.CartItems...)
		ds.Orders = append(ds.Orders, res.Orders...)
		ds.OrderItems = append(ds.OrderItems, res.OrderItems...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rg, err := orders.NewReturnsGenerator(cfg)
	if err != nil {
		return nil, err
	}
	ds.Returns, ds.ReturnItems, err = rg.Generate(ds.Orders, ds.OrderItems, tables.Customers)
	if err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}
	r.logger.Info("dataset generated",
		"customers", len(ds.Customers),
		"carts", len(ds.Carts),
		"orders", len(ds.Orders),
		"returns", len(ds.Returns))
	return ds, nil
}

// Run generates and audits a dataset. When the audit fails, the result
// carries the report but no dataset, and the error is the report's.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	r := newRunner(cfg, opts)

	configDigest, runID, err := Identity(cfg)
	if err != nil {
		return nil, err
	}
	r.logger.Info("run started", "run_id", runID, "seed", cfg.Seed, "config_digest", configDigest)

	ds, err := r.generate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	report, err := audit.Audit(ds, cfg, audit.Options{Strict: r.strict, Model: r.model, Logger: r.logger})
	if err != nil {
		return nil, err
	}
	report.RunID = runID
	res := &Result{RunID: runID, ConfigDigest: configDigest, Report: report}
	if err := report.Err(); err != nil {
		return res, err
	}

	digest, err := ds.Digest()
	if err != nil {
		return nil, err
	}
	res.Digest = digest
	res.Dataset = ds
	r.logger.Info("run complete", "run_id", runID, "digest", digest)
	return res, nil
}
