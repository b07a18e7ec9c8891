// Package storetest is a conformance suite every storage backend must pass.
package storetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/record"
	"github.com/roach88/fsindex/internal/store"
	fstestutil "github.com/roach88/fsindex/internal/testutil"
)

// Options are passed to Harness.Open.
type Options struct {
	BatchThreshold int
	Metrics        *metrics.Metrics
}

// Harness adapts one backend to the suite.
type Harness struct {
	Backend string

	// NewLocation returns a fresh, empty backend location.
	NewLocation func(t *testing.T) string

	// Open opens or attaches to the store at loc.
	Open func(t *testing.T, loc string, opts Options) store.Store

	// Inject persists raw rows, bypassing record validation, as one commit.
	Inject func(t *testing.T, loc string, rows []record.Row)
}

// Run executes every conformance test against h.
func Run(t *testing.T, h Harness) {
	t.Run("ScenarioA_Ordered", func(t *testing.T) { testScenarioA(t, h) })
	t.Run("ScenarioB_Limit", func(t *testing.T) { testScenarioB(t, h) })
	t.Run("ScenarioC_TwoCommits", func(t *testing.T) { testScenarioC(t, h) })
	t.Run("RoundTripCompleteness", func(t *testing.T) { testRoundTrip(t, h) })
	t.Run("OrderingNonDecreasing", func(t *testing.T) { testOrdering(t, h) })
	t.Run("LimitIsPrefix", func(t *testing.T) { testLimitPrefix(t, h) })
	t.Run("FaultsWithinCap", func(t *testing.T) { testFaultsWithinCap(t, h) })
	t.Run("FaultsPastCap", func(t *testing.T) { testFaultsPastCap(t, h) })
	t.Run("LimitNotShortenedByFaults", func(t *testing.T) { testLimitWithFaults(t, h) })
	t.Run("UnsupportedOrderKey", func(t *testing.T) { testUnsupportedOrderKey(t, h) })
	t.Run("NegativeLimit", func(t *testing.T) { testNegativeLimit(t, h) })
	t.Run("ReopenKeepsData", func(t *testing.T) { testReopen(t, h) })
	t.Run("EmptyStore", func(t *testing.T) { testEmpty(t, h) })
	t.Run("LoadSeesLaterCommits", func(t *testing.T) { testLoadSeesLaterCommits(t, h) })
	t.Run("ZonePreserved", func(t *testing.T) { testZonePreserved(t, h) })
	t.Run("YearBoundsRoundTrip", func(t *testing.T) { testYearBounds(t, h) })
	t.Run("PathBytesPreserved", func(t *testing.T) { testPathBytes(t, h) })
	t.Run("ConcurrentWriterReaders", func(t *testing.T) { testConcurrentWriterReaders(t, h) })
	t.Run("TwoWriters", func(t *testing.T) { testTwoWriters(t, h) })
}

func open(t *testing.T, h Harness, opts Options) (store.Store, string) {
	t.Helper()
	loc := h.NewLocation(t)
	return h.Open(t, loc, opts), loc
}

func writeAll(t *testing.T, s store.Store, recs []record.Record) {
	t.Helper()
	ctx := context.Background()
	w, err := s.Writer()
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Accept(ctx, r))
	}
	require.NoError(t, w.Close(ctx))
}

func load(t *testing.T, s store.Store, key record.OrderKey, limit int) []record.Record {
	t.Helper()
	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()

	c, err := r.Load(context.Background(), key, limit)
	require.NoError(t, err)
	got := slices.Collect(c.All())
	require.NoError(t, c.Err())
	return got
}

func pathsOf(recs []record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Path
	}
	return out
}

func mk(t *testing.T, path string, ts time.Time) record.Record {
	t.Helper()
	r, err := record.New(path, ts, "UTC")
	require.NoError(t, err)
	return r
}

// shuffled returns n records with distinct instants, written out of order.
func shuffled(t *testing.T, n int) []record.Record {
	t.Helper()
	recs := make([]record.Record, n)
	for i := range recs {
		// 7919 is prime, so the stride visits every offset once while write
		// order differs from time order.
		j := (i * 7919) % n
		recs[i] = mk(t, fmt.Sprintf("/data/%05d", i), fstestutil.Epoch.Add(time.Duration(j)*time.Millisecond))
	}
	return recs
}

func testScenarioA(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	t1 := fstestutil.Epoch
	writeAll(t, s, []record.Record{
		mk(t, "/b", t1.Add(time.Second)),
		mk(t, "/c", t1.Add(2*time.Second)),
		mk(t, "/a", t1),
	})

	got := load(t, s, record.FsCreateTime, 0)
	assert.Equal(t, []string{"/a", "/b", "/c"}, pathsOf(got))
}

func testScenarioB(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	t1 := fstestutil.Epoch
	writeAll(t, s, []record.Record{
		mk(t, "/a", t1),
		mk(t, "/b", t1.Add(time.Second)),
		mk(t, "/c", t1.Add(2*time.Second)),
	})

	got := load(t, s, record.FsCreateTime, 2)
	assert.Equal(t, []string{"/a", "/b"}, pathsOf(got))
}

func testScenarioC(t *testing.T, h Harness) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	s, _ := open(t, h, Options{BatchThreshold: 1000, Metrics: m})

	writeAll(t, s, shuffled(t, 1500))

	batches := m.BatchesCommitted.WithLabelValues(h.Backend)
	assert.Equal(t, 2.0, testutil.ToFloat64(batches))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.RecordsCommitted.WithLabelValues(h.Backend)))
	assert.Len(t, load(t, s, record.FsCreateTime, 0), 1500)
}

func testRoundTrip(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{BatchThreshold: 64})

	var recs []record.Record
	clock := fstestutil.NewDeterministicClockAt(fstestutil.Epoch, time.Microsecond)
	for _, p := range fstestutil.Paths(3, 6, 42) {
		recs = append(recs, mk(t, p, clock.Now()))
	}
	// Duplicate paths are allowed and must round-trip as a multiset.
	recs = append(recs, mk(t, recs[0].Path, clock.Now()), mk(t, recs[0].Path, clock.Now()))
	writeAll(t, s, recs)

	got := load(t, s, record.FsCreateTime, 0)
	assert.ElementsMatch(t, pathsOf(recs), pathsOf(got))
}

func testOrdering(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{BatchThreshold: 100})
	writeAll(t, s, shuffled(t, 500))

	got := load(t, s, record.FsCreateTime, 0)
	require.Len(t, got, 500)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreationTime.Before(got[i-1].CreationTime),
			"record %d (%s) sorts before record %d (%s)", i, got[i].CreationTime, i-1, got[i-1].CreationTime)
	}
}

func testLimitPrefix(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{BatchThreshold: 50})
	writeAll(t, s, shuffled(t, 200))

	all := load(t, s, record.FsCreateTime, 0)
	for _, n := range []int{1, 7, 199, 200, 500} {
		got := load(t, s, record.FsCreateTime, n)
		assert.LessOrEqual(t, len(got), n)
		assert.Equal(t, pathsOf(all[:len(got)]), pathsOf(got), "limit %d", n)
	}
}

// interleave writes valid rows with k malformed rows between them, all with
// increasing instants so scan order equals write order.
func interleave(t *testing.T, h Harness, loc string, valid, k int) {
	t.Helper()
	var rows []record.Row
	clock := fstestutil.NewDeterministicClock()
	for i := 0; i < valid; i++ {
		rows = append(rows, record.Encode(mk(t, fmt.Sprintf("/ok/%03d", i), clock.Now())))
		if i < k {
			bad := record.Encode(mk(t, fmt.Sprintf("/bad/%03d", i), clock.Now()))
			bad.CreationTimezone = "Not/A_Zone"
			rows = append(rows, bad)
		}
	}
	h.Inject(t, loc, rows)
}

func testFaultsWithinCap(t *testing.T, h Harness) {
	s, loc := open(t, h, Options{})
	interleave(t, h, loc, 20, store.MaxScanFaults)

	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()
	c, err := r.Load(context.Background(), record.FsCreateTime, 0)
	require.NoError(t, err)
	got := slices.Collect(c.All())

	assert.Len(t, got, 20)
	assert.Equal(t, store.MaxScanFaults, c.Faults())
	assert.False(t, c.Truncated())
	assert.NoError(t, c.Err())
}

func testFaultsPastCap(t *testing.T, h Harness) {
	s, loc := open(t, h, Options{})
	interleave(t, h, loc, 20, store.MaxScanFaults+3)

	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()
	c, err := r.Load(context.Background(), record.FsCreateTime, 0)
	require.NoError(t, err)
	got := slices.Collect(c.All())

	// Each bad row follows one valid row; the scan ends on bad row #11.
	assert.Equal(t, store.MaxScanFaults+1, len(got))
	assert.True(t, c.Truncated())
	assert.NoError(t, c.Err(), "truncation is reported as exhaustion")
}

func testLimitWithFaults(t *testing.T, h Harness) {
	s, loc := open(t, h, Options{})
	interleave(t, h, loc, 10, 5)

	got := load(t, s, record.FsCreateTime, 8)
	assert.Len(t, got, 8)
}

func testUnsupportedOrderKey(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()

	for _, key := range []record.OrderKey{record.FsModifyTime, record.ExifCreateTime} {
		_, err := r.Load(context.Background(), key, 0)
		assert.ErrorIs(t, err, store.ErrUnsupportedOrderKey, key.String())
	}
}

func testNegativeLimit(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Load(context.Background(), record.FsCreateTime, -1)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func testReopen(t *testing.T, h Harness) {
	s, loc := open(t, h, Options{})
	writeAll(t, s, []record.Record{mk(t, "/kept", fstestutil.Epoch)})

	again := h.Open(t, loc, Options{})
	assert.Equal(t, []string{"/kept"}, pathsOf(load(t, again, record.FsCreateTime, 0)))

	writeAll(t, again, []record.Record{mk(t, "/added", fstestutil.Epoch.Add(time.Hour))})
	assert.Equal(t, []string{"/kept", "/added"}, pathsOf(load(t, s, record.FsCreateTime, 0)))
}

func testEmpty(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	assert.Empty(t, load(t, s, record.FsCreateTime, 0))
	assert.Empty(t, load(t, s, record.FsCreateTime, 5))
}

func testLoadSeesLaterCommits(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	c, err := r.Load(ctx, record.FsCreateTime, 0)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(c.All()))

	writeAll(t, s, []record.Record{mk(t, "/late", fstestutil.Epoch)})

	c, err = r.Load(ctx, record.FsCreateTime, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/late"}, pathsOf(slices.Collect(c.All())))
}

func testZonePreserved(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	want, err := record.New("/tz", time.Date(2021, 6, 1, 8, 0, 0, 42, time.UTC), "Australia/Adelaide")
	require.NoError(t, err)
	writeAll(t, s, []record.Record{want})

	got := load(t, s, record.FsCreateTime, 0)
	require.Len(t, got, 1)
	assert.True(t, want.Equal(got[0]), "want %s, got %s", want, got[0])
	_, offset := got[0].CreationTime.Time().Zone()
	assert.Equal(t, 34200, offset, "ACST is UTC+9:30 in June")
}

func testYearBounds(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	_, err := record.New("/far", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), "UTC")
	require.ErrorIs(t, err, record.ErrInvalid)
	_, err = record.New("/before", time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC), "UTC")
	require.ErrorIs(t, err, record.ErrInvalid)

	writeAll(t, s, []record.Record{
		mk(t, "/max", time.Date(record.MaxYear, 12, 31, 23, 59, 59, 999999999, time.UTC)),
		mk(t, "/mid", fstestutil.Epoch),
		mk(t, "/min", time.Date(record.MinYear, 1, 1, 0, 0, 0, 0, time.UTC)),
	})

	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Close()
	c, err := r.Load(context.Background(), record.FsCreateTime, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/min", "/mid", "/max"}, pathsOf(slices.Collect(c.All())))
	assert.Equal(t, 0, c.Faults())
}

func testPathBytes(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{})
	decomposed := "/dir/cafe\u0301.jpg"
	composed := "/dir/caf\u00e9.jpg"
	writeAll(t, s, []record.Record{
		mk(t, decomposed, fstestutil.Epoch),
		mk(t, composed, fstestutil.Epoch.Add(time.Second)),
	})

	got := load(t, s, record.FsCreateTime, 0)
	assert.Equal(t, []string{decomposed, composed}, pathsOf(got))
}

// testConcurrentWriterReaders runs one writer and several readers on
// independent handles. Run under -race.
func testConcurrentWriterReaders(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{BatchThreshold: 50})
	recs := shuffled(t, 600)

	w, err := s.Writer()
	require.NoError(t, err)

	const readers = 3
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, readers+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		ctx := context.Background()
		for _, r := range recs {
			if err := w.Accept(ctx, r); err != nil {
				errs <- err
				return
			}
		}
		errs <- w.Close(ctx)
	}()

	for i := 0; i < readers; i++ {
		r, err := s.Reader()
		require.NoError(t, err)
		wg.Add(1)
		go func(r store.Reader) {
			defer wg.Done()
			defer r.Close()
			<-start
			for j := 0; j < 10; j++ {
				c, err := r.Load(context.Background(), record.FsCreateTime, 0)
				if err != nil {
					errs <- err
					return
				}
				var prev record.Record
				n := 0
				for rec := range c.All() {
					if n > 0 && rec.CreationTime.Before(prev.CreationTime) {
						errs <- fmt.Errorf("out of order: %s before %s", prev, rec)
						return
					}
					prev = rec
					n++
				}
				if err := c.Err(); err != nil {
					errs <- err
					return
				}
			}
		}(r)
	}

	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, load(t, s, record.FsCreateTime, 0), 600)
}

func testTwoWriters(t *testing.T, h Harness) {
	s, _ := open(t, h, Options{BatchThreshold: 25})
	recs := shuffled(t, 300)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, part := range [][]record.Record{recs[:150], recs[150:]} {
		w, err := s.Writer()
		require.NoError(t, err)
		wg.Add(1)
		go func(w store.Writer, part []record.Record) {
			defer wg.Done()
			ctx := context.Background()
			for _, r := range part {
				if err := w.Accept(ctx, r); err != nil {
					errs <- err
					return
				}
			}
			errs <- w.Close(ctx)
		}(w, part)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := load(t, s, record.FsCreateTime, 0)
	assert.ElementsMatch(t, pathsOf(recs), pathsOf(got))
}
