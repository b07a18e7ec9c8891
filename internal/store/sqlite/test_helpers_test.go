package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fsindex/internal/record"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// createTestStore opens a store in a fresh temp directory.
func createTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path, Options{Logger: discardLogger})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s, path
}

// rawDB opens the database behind the store's back.
func rawDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// insertRaw inserts untyped values, bypassing record validation.
func insertRaw(t *testing.T, path string, rows ...[3]any) {
	t.Helper()
	db := rawDB(t, path)
	tx, err := db.Begin()
	require.NoError(t, err)
	for _, r := range rows {
		_, err := tx.Exec(
			"INSERT INTO records (path, creation_instant, creation_timezone) VALUES (?, ?, ?)",
			r[0], r[1], r[2],
		)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

func injectRows(t *testing.T, path string, rows []record.Row) {
	t.Helper()
	vals := make([][3]any, len(rows))
	for i, r := range rows {
		vals[i] = [3]any{r.Path, r.CreationInstant, r.CreationTimezone}
	}
	insertRaw(t, path, vals...)
}

// verifyPragma checks that a pragma is set to the expected value on a
// connection opened the way handles open theirs.
func verifyPragma(t *testing.T, path, name, expected string) error {
	t.Helper()
	db, err := openDB(context.Background(), path, 1)
	require.NoError(t, err)
	defer db.Close()

	var value string
	if err := db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
