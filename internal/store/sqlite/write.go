package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fsindex/internal/record"
)

// committer writes each batch in one transaction on a single-connection pool.
type committer struct {
	db *sql.DB
}

// Commit inserts batch atomically. Either every row is visible to later
// scans or none is.
func (c *committer) Commit(ctx context.Context, batch []record.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (path, creation_instant, creation_timezone)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("commit batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		row := record.Encode(r)
		if _, err := stmt.ExecContext(ctx, row.Path, row.CreationInstant, row.CreationTimezone); err != nil {
			return fmt.Errorf("commit batch: insert %q: %w", row.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}

func (c *committer) Close() error {
	return c.db.Close()
}
