package lake

import (
	"context"

	"github.com/roach88/fsindex/internal/record"
)

// committer appends each batch as one data file and one log version.
type committer struct {
	table *Table
}

func (c *committer) Commit(ctx context.Context, batch []record.Record) error {
	rows := make([]record.Row, len(batch))
	for i, r := range batch {
		rows[i] = record.Encode(r)
	}
	_, err := c.table.AppendRows(ctx, rows)
	return err
}

func (c *committer) Close() error {
	return nil
}
