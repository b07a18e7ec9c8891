package store

import (
	"errors"
	"iter"
	"log/slog"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/record"
)

// CursorOptions configures a Cursor.
type CursorOptions struct {
	Backend string

	// Limit caps the number of records yielded; 0 is unbounded.
	Limit int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Cursor is a forward-only, single-pass sequence of records over one scan.
// It owns the RowSource and through it the backend connection.
//
// Malformed rows are skipped. Once more than MaxScanFaults have been skipped
// the cursor reports exhaustion exactly as if the rows had run out: Next
// returns false and Err returns nil. Callers that need completeness must check
// Truncated.
//
// Up to MaxScanFaults malformed rows are tolerated, so a scan that reads to
// the end always reports Faults() <= MaxScanFaults. The scan ends on the
// first fault past that cap, which is why Faults() is MaxScanFaults+1 when
// Truncated is true.
type Cursor struct {
	src     RowSource
	backend string
	limit   int
	logger  *slog.Logger
	metrics *metrics.Metrics

	cur       record.Record
	yielded   int
	faults    int
	truncated bool
	done      bool
	closed    bool
	err       error
}

// NewCursor takes ownership of src.
func NewCursor(src RowSource, opts CursorOptions) *Cursor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Metrics.ScanOpened(opts.Backend)
	return &Cursor{
		src:     src,
		backend: opts.Backend,
		limit:   opts.Limit,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Next advances to the next valid record. The source is released as soon
// as the sequence ends.
func (c *Cursor) Next() bool {
	if c.done || c.closed {
		return false
	}
	if c.limit > 0 && c.yielded >= c.limit {
		c.finish()
		return false
	}

	for c.src.Next() {
		r, err := c.src.Decode()
		if err == nil {
			c.cur = r
			c.yielded++
			return true
		}
		if !errors.Is(err, ErrScanFault) {
			c.err = err
			c.finish()
			return false
		}

		c.faults++
		c.metrics.ScanFault(c.backend)
		c.logger.Warn("skipping malformed row",
			"backend", c.backend,
			"faults", c.faults,
			"error", err,
		)
		if c.faults > MaxScanFaults {
			c.truncated = true
			c.metrics.ScanTruncated(c.backend)
			c.logger.Warn("scan ended early: too many malformed rows",
				"backend", c.backend,
				"yielded", c.yielded,
			)
			c.finish()
			return false
		}
	}

	c.err = c.src.Err()
	c.finish()
	return false
}

// Record returns the record Next advanced to.
func (c *Cursor) Record() record.Record {
	return c.cur
}

// Err returns the I/O error that ended the scan. Skipped rows never
// surface here.
func (c *Cursor) Err() error {
	return c.err
}

// Faults returns how many malformed rows were skipped so far.
func (c *Cursor) Faults() int {
	return c.faults
}

// Truncated reports whether the malformed row cap ended the scan.
func (c *Cursor) Truncated() bool {
	return c.truncated
}

// Close releases the scan. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.done {
		return nil
	}
	c.done = true
	return c.src.Close()
}

// All returns the remaining records as an iterator. The cursor is closed
// when the loop ends, including on break.
func (c *Cursor) All() iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		defer c.Close()
		for c.Next() {
			if !yield(c.cur) {
				return
			}
		}
	}
}

func (c *Cursor) finish() {
	if c.done {
		return
	}
	c.done = true
	if err := c.src.Close(); err != nil && c.err == nil {
		c.err = err
	}
}
