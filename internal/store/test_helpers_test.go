package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/fsindex/internal/record"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// countingCommitter records every batch it commits. Failures are scripted by
// setting failNext.
type countingCommitter struct {
	commits  int
	attempts int
	batches  [][]record.Record
	failNext int
	closed   bool
}

func (c *countingCommitter) Commit(_ context.Context, batch []record.Record) error {
	c.attempts++
	if c.failNext > 0 {
		c.failNext--
		return errors.New("disk full")
	}
	c.commits++
	c.batches = append(c.batches, append([]record.Record(nil), batch...))
	return nil
}

func (c *countingCommitter) Close() error {
	c.closed = true
	return nil
}

func (c *countingCommitter) committed() int {
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

// sliceSource serves raw rows from memory, in order.
type sliceSource struct {
	rows   []record.Row
	pos    int
	err    error
	closed int
}

func (s *sliceSource) Next() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Decode() (record.Record, error) {
	return record.Decode(s.rows[s.pos-1])
}

func (s *sliceSource) Err() error { return s.err }

func (s *sliceSource) Close() error {
	s.closed++
	return nil
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mustRecord(path string, offset time.Duration) record.Record {
	r, err := record.New(path, baseTime.Add(offset), "UTC")
	if err != nil {
		panic(err)
	}
	return r
}

func validRow(i int) record.Row {
	return record.Encode(mustRecord(fmt.Sprintf("/valid/%03d", i), time.Duration(i)*time.Second))
}

func badRow(i int) record.Row {
	return record.Row{Path: fmt.Sprintf("/bad/%03d", i), CreationInstant: "not-a-time", CreationTimezone: "UTC"}
}
