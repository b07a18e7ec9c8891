package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/record"
	"github.com/roach88/fsindex/internal/store"
)

// Reader opens ordered scans over the records table.
type Reader struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
	closed  bool
}

var _ store.Reader = (*Reader)(nil)

// Load runs one ordered scan on a dedicated connection. The connection and
// the result rows belong to the returned cursor.
//
// The SQL LIMIT over-fetches by the fault cap plus one so that skipped
// malformed rows never make a limited scan come up short; the cursor
// enforces the exact limit.
func (r *Reader) Load(ctx context.Context, key record.OrderKey, limit int) (*store.Cursor, error) {
	if r.closed {
		return nil, store.Closed("load")
	}
	if err := store.CheckLimit(limit); err != nil {
		return nil, err
	}
	column, err := key.Column()
	if err != nil {
		return nil, store.NewError(store.ErrCodeUnsupportedOrderKey, "load", err)
	}

	sqlLimit := -1
	if limit > 0 {
		sqlLimit = limit + store.MaxScanFaults + 1
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: acquire connection: %w", err)
	}

	// The scan reads one snapshot; commits made while it is open stay invisible.
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("load: begin read transaction: %w", err)
	}

	// Deterministic ordering - ORDER BY <key> ASC, rowid ASC
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT path, creation_instant, creation_timezone
		FROM records
		ORDER BY %s ASC, rowid ASC
		LIMIT ?
	`, column), sqlLimit)
	if err != nil {
		tx.Rollback()
		conn.Close()
		return nil, fmt.Errorf("load: query records: %w", err)
	}

	return store.NewCursor(&rowSource{conn: conn, tx: tx, rows: rows}, store.CursorOptions{
		Backend: Backend,
		Limit:   limit,
		Logger:  r.logger,
		Metrics: r.metrics,
	}), nil
}

// Close closes the reader's pool. Open cursors keep their connection until
// they are closed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

// rowSource co-locates the checked-out connection, its read transaction and
// the rows read from it, so releasing the source releases all three.
type rowSource struct {
	conn *sql.Conn
	tx   *sql.Tx
	rows *sql.Rows
}

func (s *rowSource) Next() bool {
	return s.rows.Next()
}

// Decode scans untyped values: SQLite does not enforce column types, so a
// row may hold NULLs, integers or non-UTF-8 blobs.
func (s *rowSource) Decode() (record.Record, error) {
	var path, instant, zone any
	if err := s.rows.Scan(&path, &instant, &zone); err != nil {
		return record.Record{}, fmt.Errorf("%w: scan: %v", record.ErrMalformedRow, err)
	}
	return record.DecodeValues(path, instant, zone)
}

func (s *rowSource) Err() error {
	if err := s.rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	return nil
}

func (s *rowSource) Close() error {
	rerr := s.rows.Close()
	// A read-only transaction has nothing to undo; Rollback just ends it.
	terr := s.tx.Rollback()
	if errors.Is(terr, sql.ErrTxDone) {
		terr = nil
	}
	cerr := s.conn.Close()
	return errors.Join(rerr, terr, cerr)
}
