package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsindex/internal/record"
)

// recordingWriter tracks the calls abortWriter makes.
type recordingWriter struct {
	pending  int
	calls    []string
	closeCtx context.Context
	closeErr error
}

func (w *recordingWriter) Accept(context.Context, record.Record) error { return nil }
func (w *recordingWriter) Flush(context.Context) error { return nil }
func (w *recordingWriter) Pending() int { return w.pending }

func (w *recordingWriter) Discard() int {
	w.calls = append(w.calls, "discard")
	n := w.pending
	w.pending = 0
	return n
}

func (w *recordingWriter) Close(ctx context.Context) error {
	w.calls = append(w.calls, "close")
	w.closeCtx = ctx
	if w.pending > 0 {
		return errors.New("close would have committed")
	}
	return w.closeErr
}

func TestAbortWriter_DiscardsBeforeClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &recordingWriter{pending: 7}

	abortWriter(ctx, w, discardLogger)

	assert.Equal(t, []string{"discard", "close"}, w.calls)
	assert.Equal(t, 0, w.pending)
	require.NotNil(t, w.closeCtx)
	assert.NoError(t, w.closeCtx.Err(), "close must not see the cancellation")
}

func TestAbortWriter_CloseErrorIsLogged(t *testing.T) {
	w := &recordingWriter{closeErr: errors.New("disk gone")}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	abortWriter(context.Background(), w, logger)

	assert.Equal(t, []string{"discard", "close"}, w.calls)
	assert.Contains(t, buf.String(), "failed to close writer")
	assert.Contains(t, buf.String(), "disk gone")
}

func TestIndex_InvalidZoneCommitsNothing(t *testing.T) {
	tree := t.TempDir()
	loc := filepath.Join(t.TempDir(), "index.db")

	_, _, err := runCLI(t, "--backend", "sqlite", "--location", loc, "index", tree, "--zone", "Not/AZone")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	stdout, _, err := runCLI(t, "--backend", "sqlite", "--location", loc, "list")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}
