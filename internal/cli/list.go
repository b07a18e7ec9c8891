package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fsindex/internal/record"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	OrderBy string
	Limit   int
}

// ListedRecord is one record in list output.
type ListedRecord struct {
	Path         string `json:"path"`
	CreationTime string `json:"creation_time"`
	Timezone     string `json:"timezone"`
}

// ListResult is the payload reported by the list command.
type ListResult struct {
	Records   []ListedRecord `json:"records"`
	Faults    int            `json:"faults"`
	Truncated bool           `json:"truncated"`
}

func (r ListResult) WriteText(w io.Writer) error {
	for _, rec := range r.Records {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", rec.CreationTime, rec.Timezone, rec.Path); err != nil {
			return err
		}
	}
	if r.Truncated {
		fmt.Fprintf(w, "(listing truncated after %d malformed rows)\n", r.Faults)
	}
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in creation order",
		Long: `List stored records ordered by the chosen key, oldest first.

Example:
  fsindex list --limit 20
  fsindex list --order-by FsCreateTime --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OrderBy, "order-by", record.FsCreateTime.String(), "order key (FsCreateTime|FsModifyTime|ExifCreateTime)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum records to list (0 lists all)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	key, err := record.ParseOrderKey(opts.OrderBy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --order-by", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	s, _, err := openStore(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	reader, err := s.Reader()
	if err != nil {
		return WrapStoreError("failed to open reader", err)
	}
	defer reader.Close()

	cursor, err := reader.Load(ctx, key, opts.Limit)
	if err != nil {
		return WrapStoreError("failed to load records", err)
	}
	defer cursor.Close()

	result := ListResult{Records: []ListedRecord{}}
	for rec := range cursor.All() {
		result.Records = append(result.Records, ListedRecord{
			Path:         rec.Path,
			CreationTime: rec.CreationTime.Time().Format(time.RFC3339Nano),
			Timezone:     rec.CreationTime.Zone(),
		})
	}
	if err := cursor.Err(); err != nil {
		return WrapExitError(ExitFailure, "scan failed", err)
	}
	result.Faults = cursor.Faults()
	result.Truncated = cursor.Truncated()
	if result.Faults > 0 {
		opts.formatter(cmd).VerboseLog("skipped %d malformed rows", result.Faults)
	}

	return opts.formatter(cmd).Success(result)
}
