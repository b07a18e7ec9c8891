package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/record"
)

// RetryPolicy bounds automatic re-commits of a failed batch.
// Attempts < 1 means a single attempt.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// WriterOptions configures a BatchWriter.
type WriterOptions struct {
	// Backend labels logs and metrics ("sqlite", "lake").
	Backend string

	// Threshold is the buffer size above which Accept flushes.
	// Zero selects DefaultBatchThreshold.
	Threshold int

	Retry   RetryPolicy
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// BatchWriter buffers records and commits them in batches through a
// Committer. The buffer is only cleared after a confirmed commit, so a
// failed Flush never loses records.
//
// BatchWriter is not safe for concurrent use.
type BatchWriter struct {
	committer Committer
	threshold int
	retry     RetryPolicy
	backend   string
	logger    *slog.Logger
	metrics   *metrics.Metrics

	buf    []record.Record
	closed bool
}

var _ Writer = (*BatchWriter)(nil)

// NewBatchWriter wraps c. The writer owns c and closes it on Close.
func NewBatchWriter(c Committer, opts WriterOptions) *BatchWriter {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultBatchThreshold
	}
	retry := opts.Retry
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{
		committer: c,
		threshold: threshold,
		retry:     retry,
		backend:   opts.Backend,
		logger:    logger,
		metrics:   opts.Metrics,
		buf:       make([]record.Record, 0, threshold+1),
	}
}

// Accept buffers r and flushes once the buffer exceeds the threshold.
func (w *BatchWriter) Accept(ctx context.Context, r record.Record) error {
	if w.closed {
		return Closed("accept")
	}
	if r.Path == "" || r.CreationTime.IsZero() {
		return NewError(ErrCodeValidation, "accept", fmt.Errorf("%w: record was not built with record.New", record.ErrInvalid))
	}

	w.buf = append(w.buf, r)
	w.metrics.Accepted(w.backend)

	if len(w.buf) > w.threshold {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits the whole buffer as one atomic unit.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if w.closed {
		return Closed("flush")
	}
	if len(w.buf) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	for attempt := 1; attempt <= w.retry.Attempts; attempt++ {
		if err = w.committer.Commit(ctx, w.buf); err == nil {
			break
		}
		w.metrics.CommitFailed(w.backend)
		w.logger.Warn("batch commit failed",
			"backend", w.backend,
			"attempt", attempt,
			"attempts", w.retry.Attempts,
			"records", len(w.buf),
			"error", err,
		)
		if attempt == w.retry.Attempts {
			break
		}
		if werr := sleepCtx(ctx, w.retry.Delay); werr != nil {
			err = werr
			break
		}
	}
	if err != nil {
		return NewError(ErrCodeCommitFailure, "flush", err)
	}

	elapsed := time.Since(start)
	w.metrics.Committed(w.backend, len(w.buf), elapsed.Seconds())
	w.logger.Debug("batch committed",
		"backend", w.backend,
		"records", len(w.buf),
		"duration", elapsed,
	)

	clear(w.buf)
	w.buf = w.buf[:0]
	return nil
}

// Pending returns the number of buffered records.
func (w *BatchWriter) Pending() int {
	return len(w.buf)
}

// Discard drops every buffered record without committing them.
// It returns how many were dropped.
func (w *BatchWriter) Discard() int {
	n := len(w.buf)
	if n > 0 {
		w.logger.Warn("discarding uncommitted records", "backend", w.backend, "records", n)
	}
	clear(w.buf)
	w.buf = w.buf[:0]
	return n
}

// Close flushes and closes the committer. Calling Close twice is a no-op.
func (w *BatchWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	if err := w.Flush(ctx); err != nil {
		return err
	}
	w.closed = true
	if err := w.committer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
