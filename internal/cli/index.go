package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fsindex/internal/store"
	"github.com/roach88/fsindex/internal/walk"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Zone           string
	FilesOnly      bool
	BatchThreshold int
}

// IndexResult is the payload reported by the index command.
type IndexResult struct {
	Root     string `json:"root"`
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Accepted int    `json:"accepted"`
	Skipped  int    `json:"skipped"`
	Stopped  string `json:"stopped,omitempty"`
}

func (r IndexResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Indexed %d entries from %s into %s:%s", r.Accepted, r.Root, r.Backend, r.Location)
	if err != nil {
		return err
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, " (%d non-UTF-8 paths skipped)", r.Skipped)
	}
	fmt.Fprintln(w)
	if r.Stopped != "" {
		fmt.Fprintf(w, "Walk stopped early: %s\n", r.Stopped)
	}
	return nil
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Walk a directory and record every entry",
		Long: `Walk a directory tree and store one record per entry with its
creation time, committing in batches.

Example:
  fsindex index ~/Pictures
  fsindex index --backend lake --location ./index ~/Pictures --zone Europe/Berlin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Zone, "zone", "", "IANA zone creation times are recorded in, overrides config")
	cmd.Flags().BoolVar(&opts.FilesOnly, "files-only", false, "skip directories and special files")
	cmd.Flags().IntVar(&opts.BatchThreshold, "batch-threshold", 0, "records buffered before a commit, overrides config")

	return cmd
}

func runIndex(opts *IndexOptions, root string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Zone != "" {
		cfg.Walk.Zone = opts.Zone
	}
	if opts.FilesOnly {
		cfg.Walk.FilesOnly = true
	}
	if opts.BatchThreshold > 0 {
		cfg.BatchThreshold = opts.BatchThreshold
	}

	ctx := commandContext(cmd)
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	s, loc, err := openStore(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	w, err := s.Writer()
	if err != nil {
		return WrapStoreError("failed to open writer", err)
	}

	stats, err := walk.Walk(ctx, root, w, walk.Options{
		Zone:      cfg.Walk.Zone,
		FilesOnly: cfg.Walk.FilesOnly,
		Logger:    logger,
	})
	if err != nil {
		abortWriter(ctx, w, logger)
		return WrapStoreError("index failed", err)
	}
	if err := w.Close(ctx); err != nil {
		return WrapStoreError("failed to close writer", err)
	}

	result := IndexResult{
		Root:     root,
		Backend:  string(loc.Kind),
		Location: s.Location(),
		Accepted: stats.Accepted,
		Skipped:  stats.Skipped,
	}
	if stats.Stopped != nil {
		result.Stopped = stats.Stopped.Error()
	}
	return opts.formatter(cmd).Success(result)
}

// abortWriter drops w's uncommitted buffer and releases its handle. Batches
// committed before the failure stay. Close runs without ctx's cancellation so
// an interrupted walk still releases the handle.
func abortWriter(ctx context.Context, w store.Writer, logger *slog.Logger) {
	if n := w.Discard(); n > 0 {
		logger.Warn("index aborted, uncommitted records dropped", "records", n)
	}
	if err := w.Close(context.WithoutCancel(ctx)); err != nil {
		logger.Error("failed to close writer", "error", err)
	}
}
