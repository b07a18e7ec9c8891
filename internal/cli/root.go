package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/fsindex/internal/backend"
	"github.com/roach88/fsindex/internal/config"
	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Storage overrides; empty keeps the config file value.
	Backend  string
	Location string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fsindex CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fsindex",
		Short: "fsindex - filesystem creation-time index",
		Long: `Index files with their creation time into SQLite or a Parquet table
directory, and list them back in creation order.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend (sqlite|lake), overrides config")
	cmd.PersistentFlags().StringVar(&opts.Location, "location", "", "storage location, overrides config")

	// Add subcommands
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Execute runs cmd and reports a failure through the output formatter, so
// --format json yields an error CLIResponse on stdout. It returns the exit
// code.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	format, _ := cmd.PersistentFlags().GetString("format")
	formatter := &OutputFormatter{Format: format, Writer: cmd.ErrOrStderr()}
	if format == "json" {
		formatter.Writer = cmd.OutOrStdout()
	}
	_ = formatter.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			exitErr := WrapExitError(ExitCommandError, "failed to load config", err)
			exitErr.ErrCode = ErrCodeConfig
			return nil, exitErr
		}
	}
	if o.Backend != "" {
		cfg.Storage.Kind = o.Backend
	}
	if o.Location != "" {
		cfg.Storage.Path = o.Location
	}
	return cfg, nil
}

// logger writes text logs to w at the configured level, or debug when
// --verbose is set.
func (o *RootOptions) logger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.LogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (store.Store, backend.Location, error) {
	kind, err := backend.ParseKind(cfg.Storage.Kind)
	if err != nil {
		return nil, backend.Location{}, WrapExitError(ExitCommandError, "invalid backend", err)
	}
	loc := backend.Location{Kind: kind, Path: cfg.Storage.Path}

	s, err := backend.Open(ctx, loc, backend.Options{
		Logger:         logger,
		Metrics:        m,
		BatchThreshold: cfg.BatchThreshold,
		Retry: store.RetryPolicy{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.RetryDelay(),
		},
		CommitRetries: cfg.Lake.CommitRetries,
	})
	if err != nil {
		return nil, loc, WrapStoreError(fmt.Sprintf("failed to open %s", loc), err)
	}
	logger.Debug("store ready", "backend", loc.Kind, "location", s.Location())
	return s, loc, nil
}

// commandContext returns cmd's context, or Background when run outside
// Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
