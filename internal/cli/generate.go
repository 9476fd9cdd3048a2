package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/export"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/mess"
	"github.com/roach88/ecomgen/internal/pipeline"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	OutputDir  string
	Formats    []string
	SQLitePath string
	Messiness  string
	Workers    int
	Strict     bool
}

// GenerateResult is the JSON payload of a successful generate.
type GenerateResult struct {
	RunID        string         `json:"run_id"`
	Digest       string         `json:"digest"`
	ConfigDigest string         `json:"config_digest"`
	Counts       map[string]int `json:"counts"`
	Files        []string       `json:"files"`
	Messiness    string         `json:"messiness"`
	Report       *audit.Report  `json:"report"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate, audit and export a dataset",
		Long: `Generate a dataset from the configuration, audit it, and export it.

Nothing is exported unless every deterministic audit check passes. In
strict mode statistical deviations fail the run as well. Messiness is
applied to the exported copy only, after the audit.

Example:
  ecomgen generate --config shop.yaml --out ./data
  ecomgen generate --seed 7 --formats csv,sqlite --messiness light_mess`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", "", "output directory (default export.output_dir)")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", nil, "export formats: csv, sql, sqlite, xlsx (default export.formats)")
	cmd.Flags().StringVar(&opts.SQLitePath, "sqlite-path", "", "SQLite database path (default export.sqlite_path)")
	cmd.Flags().StringVar(&opts.Messiness, "messiness", "", "none, light_mess, medium_mess or heavy_mess (default export.messiness)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "simulation workers (default simulation.workers)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on statistical deviations")

	return cmd
}

// apply lays the flag overrides over the configuration.
func (o *GenerateOptions) apply(cfg *config.Config) {
	if o.OutputDir != "" {
		cfg.Export.OutputDir = o.OutputDir
	}
	if len(o.Formats) > 0 {
		cfg.Export.Formats = o.Formats
	}
	if o.SQLitePath != "" {
		cfg.Export.SQLitePath = o.SQLitePath
	}
	if o.Messiness != "" {
		cfg.Export.Messiness = o.Messiness
	}
	if o.Workers > 0 {
		cfg.Simulation.Workers = o.Workers
	}
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return configError(formatter, err)
	}
	opts.apply(cfg)
	if _, err := mess.ProfileFor(cfg.Export.Messiness); err != nil {
		return configError(formatter, generr.NewConfigurationError("export.messiness", "%v", err))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := pipeline.Run(ctx, cfg, pipeline.WithLogger(logger), pipeline.WithStrict(opts.Strict))
	if err != nil {
		return generateError(formatter, res, err)
	}

	tables := res.Dataset.Tables()
	if cfg.Export.Messiness != mess.None {
		if tables, err = mess.Apply(cfg.Seed, cfg.Export.Messiness, tables); err != nil {
			return WrapExitError(ExitFailure, "messiness", err)
		}
		logger.Info("messiness applied", "level", cfg.Export.Messiness)
	}
	files, err := export.Write(ctx, tables, export.Options{
		Dir:        cfg.Export.OutputDir,
		Formats:    cfg.Export.Formats,
		SQLitePath: cfg.Export.SQLitePath,
		Logger:     logger,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	result := GenerateResult{
		RunID:        res.RunID,
		Digest:       res.Digest,
		ConfigDigest: res.ConfigDigest,
		Counts:       res.Dataset.Counts(),
		Files:        files,
		Messiness:    cfg.Export.Messiness,
		Report:       res.Report,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if err := RenderReport(w, res.Report); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Dataset %s written to %s (%d files, messiness %s)\n",
		res.Digest[:12], cfg.Export.OutputDir, len(files), cfg.Export.Messiness)
	return nil
}

// configError reports a configuration problem with exit code 2.
func configError(f *OutputFormatter, err error) error {
	details := interface{}(nil)
	var ce *generr.ConfigurationError
	if errors.As(err, &ce) && len(ce.Problems) > 0 {
		details = ce.Problems
	}
	_ = f.Error(errorCode(err), err.Error(), details)
	return WrapExitError(ExitCommandError, "invalid configuration", err)
}

// generateError reports a failed run. An audit failure comes with the
// report, which is rendered in full.
func generateError(f *OutputFormatter, res *pipeline.Result, err error) error {
	if generr.IsConfigurationError(err) {
		return configError(f, err)
	}
	var report *audit.Report
	if res != nil {
		report = res.Report
	}
	if f.Format == "json" {
		_ = f.Error(errorCode(err), err.Error(), report)
	} else {
		if report != nil {
			_ = RenderReport(f.Writer, report)
		}
		_ = f.Error(errorCode(err), firstLine(err.Error()), nil)
	}
	msg := "generation failed"
	if report != nil {
		msg = "audit failed"
	}
	return WrapExitError(ExitFailure, msg, err)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
