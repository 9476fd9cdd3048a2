package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/config"
	"github.com/roach88/ecomgen/internal/pipeline"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                     `json:"valid"`
	Warnings []config.ValidationError `json:"warnings,omitempty"`
	Report   *audit.Report            `json:"report,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Audit  bool
	Strict bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration",
		Long: `Validate a configuration without exporting anything.

Runs the schema and semantic checks and reports lint findings. With
--audit, also generates the dataset in memory and prints the full audit
report.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Audit, "audit", false, "generate in memory and audit the dataset")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on statistical deviations (with --audit)")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return configError(formatter, err)
	}
	result := ValidationResult{Valid: true, Warnings: config.Lint(cfg)}

	if opts.Audit {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		res, err := pipeline.Run(ctx, cfg, pipeline.WithLogger(logger), pipeline.WithStrict(opts.Strict))
		if err != nil {
			return generateError(formatter, res, err)
		}
		result.Report = res.Report
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "! %s\n", warn.Error())
	}
	if result.Report != nil {
		if err := RenderReport(w, result.Report); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "✓ Configuration valid")
	return nil
}
