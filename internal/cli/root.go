package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/ecomgen/internal/config"
)

// Environment variables read as flag defaults.
const (
	EnvConfig = "ECOMGEN_CONFIG"
	EnvSeed   = "ECOMGEN_SEED"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a YAML configuration; empty uses the defaults
	Seed    uint64

	seedSet bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ecomgen CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ecomgen",
		Short: "Synthetic e-commerce dataset generator",
		Long: `Generate a relational retail dataset (customers, products, carts,
orders, returns) from a behavioral configuration, and audit it against
that configuration.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolveSeed(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", os.Getenv(EnvConfig), "configuration file (env "+EnvConfig+")")
	cmd.PersistentFlags().Uint64Var(&opts.Seed, "seed", 0, "override the configured seed (env "+EnvSeed+")")

	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// resolveSeed records whether a seed override was given by flag or
// environment.
func (o *RootOptions) resolveSeed(cmd *cobra.Command) error {
	if cmd.Flags().Changed("seed") {
		o.seedSet = true
		return nil
	}
	v, ok := os.LookupEnv(EnvSeed)
	if !ok || v == "" {
		return nil
	}
	seed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid "+EnvSeed, err)
	}
	o.Seed, o.seedSet = seed, true
	return nil
}

// loadConfig loads the configured file, or the defaults, and applies the
// seed override.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.Config == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(o.Config); err != nil {
		return nil, err
	}
	if o.seedSet {
		cfg.Seed = o.Seed
	}
	return cfg, nil
}

// newLogger returns a text logger on w and installs it as the default.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
