package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Backend is the label used in logs and metrics.
const Backend = "sqlite"

// Schema version tracking:
// 0 - Legacy table records(path) with no timestamp columns
// 1 - creation_instant/creation_timezone columns and instant index
const currentSchemaVersion = 1

// Options configures handles opened from a Store.
type Options struct {
	BatchThreshold int
	Retry          store.RetryPolicy
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// Store is the SQLite store factory. It holds no connection; every handle
// it returns opens its own.
type Store struct {
	path string
	opts Options
}

var _ store.Store = (*Store)(nil)

// Open creates or attaches to the database at path and brings its schema up
// to date. Existing rows are never modified.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := openDB(ctx, path, 1)
	if err != nil {
		return nil, store.Unavailable("open sqlite", err)
	}
	defer db.Close()

	if err := applySchema(ctx, db); err != nil {
		return nil, store.Unavailable("open sqlite", fmt.Errorf("failed to apply schema: %w", err))
	}

	opts.Logger.Debug("sqlite store opened", "path", path)
	return &Store{path: path, opts: opts}, nil
}

// Location returns the database path.
func (s *Store) Location() string {
	return s.path
}

// Writer opens a new single-connection writer.
func (s *Store) Writer() (store.Writer, error) {
	db, err := openDB(context.Background(), s.path, 1)
	if err != nil {
		return nil, store.Unavailable("open sqlite writer", err)
	}
	return store.NewBatchWriter(&committer{db: db}, store.WriterOptions{
		Backend:   Backend,
		Threshold: s.opts.BatchThreshold,
		Retry:     s.opts.Retry,
		Logger:    s.opts.Logger,
		Metrics:   s.opts.Metrics,
	}), nil
}

// Reader opens a new reader with its own connection pool.
func (s *Store) Reader() (store.Reader, error) {
	db, err := openDB(context.Background(), s.path, 0)
	if err != nil {
		return nil, store.Unavailable("open sqlite reader", err)
	}
	return &Reader{db: db, logger: s.opts.Logger, metrics: s.opts.Metrics}, nil
}

// openDB opens and pings a pool for path. maxConns 0 leaves the pool
// unbounded.
func openDB(ctx context.Context, path string, maxConns int) (*sql.DB, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	// Verify connection works (creates the file if it doesn't exist)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	legacy, err := hasTable(ctx, db, "records")
	if err != nil {
		return err
	}

	// A records table without a version predates the timestamp columns.
	if legacy && version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if version != currentSchemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// migrateToV1 adds the timestamp columns to a legacy records(path) table.
// Legacy rows keep NULL timestamps and are skipped as malformed by readers.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	cols, err := tableColumns(ctx, db, "records")
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	for _, col := range []string{"creation_instant", "creation_timezone"} {
		if cols[col] {
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE records ADD COLUMN %s TEXT", col)); err != nil {
			return fmt.Errorf("migrate to v1: add %s: %w", col, err)
		}
	}
	return nil
}

func hasTable(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
