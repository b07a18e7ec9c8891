package store

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsindex/internal/record"
)

func newTestCursor(src RowSource, limit int) *Cursor {
	return NewCursor(src, CursorOptions{Backend: "test", Limit: limit, Logger: discardLogger})
}

func paths(c *Cursor) []string {
	var out []string
	for r := range c.All() {
		out = append(out, r.Path)
	}
	return out
}

func TestCursor_YieldsAllValidRows(t *testing.T) {
	src := &sliceSource{rows: []record.Row{validRow(1), validRow(2), validRow(3)}}
	c := newTestCursor(src, 0)

	assert.Equal(t, []string{"/valid/001", "/valid/002", "/valid/003"}, paths(c))
	assert.NoError(t, c.Err())
	assert.Equal(t, 1, src.closed, "source released exactly once")
}

func TestCursor_Limit(t *testing.T) {
	src := &sliceSource{rows: []record.Row{validRow(1), validRow(2), validRow(3)}}
	c := newTestCursor(src, 2)

	assert.Equal(t, []string{"/valid/001", "/valid/002"}, paths(c))
	assert.Equal(t, 1, src.closed)
}

func TestCursor_SkipsUpToCapFaults(t *testing.T) {
	var rows []record.Row
	for i := 0; i < MaxScanFaults; i++ {
		rows = append(rows, badRow(i), validRow(i))
	}
	c := newTestCursor(&sliceSource{rows: rows}, 0)

	got := paths(c)
	assert.Len(t, got, MaxScanFaults)
	assert.Equal(t, MaxScanFaults, c.Faults())
	assert.False(t, c.Truncated())
	assert.NoError(t, c.Err())
}

func TestCursor_StopsPastCap(t *testing.T) {
	var rows []record.Row
	for i := 0; i < MaxScanFaults+5; i++ {
		rows = append(rows, validRow(i), badRow(i))
	}
	src := &sliceSource{rows: rows}
	c := newTestCursor(src, 0)

	got := paths(c)
	// One valid row precedes each bad row; the scan ends on bad row #11.
	assert.Len(t, got, MaxScanFaults+1)
	assert.True(t, c.Truncated())
	assert.Equal(t, MaxScanFaults+1, c.Faults())
	assert.NoError(t, c.Err(), "truncation looks like exhaustion")
	assert.Equal(t, 1, src.closed)
}

func TestCursor_FaultCounterIsPerCursor(t *testing.T) {
	rows := []record.Row{badRow(1), validRow(1)}
	for i := 0; i < 3; i++ {
		c := newTestCursor(&sliceSource{rows: rows}, 0)
		assert.Equal(t, []string{"/valid/001"}, paths(c))
		assert.Equal(t, 1, c.Faults())
	}
}

func TestCursor_SourceErrorSurfaces(t *testing.T) {
	boom := errors.New("disk I/O error")
	src := &sliceSource{rows: []record.Row{validRow(1)}, err: boom}
	c := newTestCursor(src, 0)

	assert.Equal(t, []string{"/valid/001"}, paths(c))
	assert.ErrorIs(t, c.Err(), boom)
}

func TestCursor_BreakReleasesSource(t *testing.T) {
	src := &sliceSource{rows: []record.Row{validRow(1), validRow(2), validRow(3)}}
	c := newTestCursor(src, 0)

	for range c.All() {
		break
	}

	assert.Equal(t, 1, src.closed)
	assert.False(t, c.Next(), "closed cursor is exhausted")
	require.NoError(t, c.Close())
	assert.Equal(t, 1, src.closed)
}

func TestCursor_NextRecordLoop(t *testing.T) {
	src := &sliceSource{rows: []record.Row{validRow(2), validRow(5)}}
	c := newTestCursor(src, 0)
	defer c.Close()

	var got []record.Record
	for c.Next() {
		got = append(got, c.Record())
	}
	require.NoError(t, c.Err())
	require.Len(t, got, 2)
	assert.True(t, got[0].CreationTime.Before(got[1].CreationTime))
}

func TestCursor_CollectWithSlices(t *testing.T) {
	src := &sliceSource{rows: []record.Row{validRow(1), badRow(1), validRow(2)}}
	got := slices.Collect(newTestCursor(src, 0).All())
	assert.Len(t, got, 2)
}
