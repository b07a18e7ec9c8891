package store

import (
	"context"
	"fmt"

	"github.com/roach88/fsindex/internal/record"
)

// DefaultBatchThreshold is the buffer size above which Accept commits.
const DefaultBatchThreshold = 1000

// MaxScanFaults is how many malformed rows one Load tolerates.
// The next malformed row ends the sequence.
const MaxScanFaults = 10

// Sink consumes records pushed by a traversal or replay source.
type Sink interface {
	// Accept enqueues one record. It only reaches the backend when the
	// buffer crosses the batch threshold.
	Accept(ctx context.Context, r record.Record) error

	// Flush commits every buffered record. On failure the records stay
	// buffered and can be flushed again.
	Flush(ctx context.Context) error
}

// Writer is a Sink bound to one backend handle.
// A Writer is not safe for concurrent use; give each producer its own.
type Writer interface {
	Sink

	// Pending returns the number of buffered, uncommitted records.
	Pending() int

	// Discard drops the buffered records and returns how many were dropped.
	// Batches already committed are unaffected.
	Discard() int

	// Close flushes and releases the backend handle. If the flush fails
	// the handle stays open and the error is returned.
	Close(ctx context.Context) error
}

// Reader opens ordered scans.
type Reader interface {
	// Load opens a new scan ordered ascending by key. limit 0 means
	// unbounded. The returned Cursor must be drained or closed.
	Load(ctx context.Context, key record.OrderKey, limit int) (*Cursor, error)

	// Close releases the reader's backend handle. Cursors already returned
	// keep their own connection until they are closed.
	Close() error
}

// Store hands out independent writer and reader handles for one backend
// location. Handles share no mutable state.
type Store interface {
	Writer() (Writer, error)
	Reader() (Reader, error)

	// Location returns the backend path or URI the store was opened with.
	Location() string
}

// Committer is the backend half of a BatchWriter: it persists one batch as
// a single atomic unit. Commit must not retain batch after it returns.
type Committer interface {
	Commit(ctx context.Context, batch []record.Record) error
	Close() error
}

// RowSource is the backend half of a Cursor: a forward-only stream of raw
// rows in ascending key order.
type RowSource interface {
	// Next advances to the next row. It returns false when the rows are
	// exhausted or an I/O error occurred.
	Next() bool

	// Decode validates the current row. Errors wrapping ErrScanFault are
	// counted and skipped; anything else ends the scan.
	Decode() (record.Record, error)

	// Err returns the I/O error that stopped Next, if any.
	Err() error

	// Close releases the connection and scan state.
	Close() error
}

// CheckLimit validates a Load limit.
func CheckLimit(limit int) error {
	if limit < 0 {
		return NewError(ErrCodeValidation, "load", fmt.Errorf("%w: negative limit %d", record.ErrInvalid, limit))
	}
	return nil
}
