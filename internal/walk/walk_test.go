package walk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsindex/internal/record"
	"github.com/roach88/fsindex/internal/store"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type collectSink struct {
	accepted  []record.Record
	flushes   int
	acceptErr error
}

func (s *collectSink) Accept(_ context.Context, r record.Record) error {
	if s.acceptErr != nil {
		return s.acceptErr
	}
	s.accepted = append(s.accepted, r)
	return nil
}

func (s *collectSink) Flush(context.Context) error {
	s.flushes++
	return nil
}

var _ store.Sink = (*collectSink)(nil)

func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
	return root
}

func paths(root string, recs []record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		rel, _ := filepath.Rel(root, r.Path)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestWalk_VisitsEveryEntry(t *testing.T) {
	root := makeTree(t, "a.jpg", "sub/b.jpg", "sub/deeper/c.png")
	sink := &collectSink{}

	stats, err := Walk(context.Background(), root, sink, Options{Logger: discardLogger})
	require.NoError(t, err)

	assert.Equal(t, []string{".", "a.jpg", "sub", "sub/b.jpg", "sub/deeper", "sub/deeper/c.png"}, paths(root, sink.accepted))
	assert.Equal(t, 6, stats.Accepted)
	assert.Equal(t, 1, sink.flushes)
	assert.NoError(t, stats.Stopped)
}

func TestWalk_FilesOnly(t *testing.T) {
	root := makeTree(t, "a.jpg", "sub/b.jpg")
	sink := &collectSink{}

	_, err := Walk(context.Background(), root, sink, Options{FilesOnly: true, Logger: discardLogger})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "sub/b.jpg"}, paths(root, sink.accepted))
}

func TestWalk_Zone(t *testing.T) {
	root := makeTree(t, "a.jpg")

	sink := &collectSink{}
	_, err := Walk(context.Background(), root, sink, Options{FilesOnly: true, Logger: discardLogger})
	require.NoError(t, err)
	require.Len(t, sink.accepted, 1)
	assert.Equal(t, DefaultZone, sink.accepted[0].CreationTime.Zone())
	assert.False(t, sink.accepted[0].CreationTime.Time().IsZero())

	sink = &collectSink{}
	_, err = Walk(context.Background(), root, sink, Options{FilesOnly: true, Zone: "Asia/Tokyo", Logger: discardLogger})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", sink.accepted[0].CreationTime.Zone())
}

func TestWalk_InvalidZone(t *testing.T) {
	root := makeTree(t, "a.jpg")
	sink := &collectSink{}

	_, err := Walk(context.Background(), root, sink, Options{Zone: "Mars/Olympus", Logger: discardLogger})
	assert.ErrorIs(t, err, record.ErrInvalid)
	assert.Empty(t, sink.accepted)
	assert.Zero(t, sink.flushes)
}

func TestWalk_SkipsNonUTF8Paths(t *testing.T) {
	root := makeTree(t, "ok.jpg")
	if err := os.WriteFile(filepath.Join(root, "bad\xff.jpg"), nil, 0o644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}
	sink := &collectSink{}

	stats, err := Walk(context.Background(), root, sink, Options{FilesOnly: true, Logger: discardLogger})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.jpg"}, paths(root, sink.accepted))
	assert.Equal(t, 1, stats.Skipped)
}

func TestWalk_MissingRootStopsButFlushes(t *testing.T) {
	sink := &collectSink{}

	stats, err := Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), sink, Options{Logger: discardLogger})
	require.NoError(t, err)
	assert.ErrorIs(t, stats.Stopped, os.ErrNotExist)
	assert.Equal(t, 1, sink.flushes)
}

func TestWalk_SinkErrorAborts(t *testing.T) {
	root := makeTree(t, "a.jpg")
	boom := errors.New("boom")
	sink := &collectSink{acceptErr: boom}

	_, err := Walk(context.Background(), root, sink, Options{Logger: discardLogger})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, sink.flushes)
}

func TestWalk_Cancelled(t *testing.T) {
	root := makeTree(t, "a.jpg", "b.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &collectSink{}

	_, err := Walk(ctx, root, sink, Options{Logger: discardLogger})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.accepted)
}
