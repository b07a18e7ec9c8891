package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/record"
	"github.com/roach88/fsindex/internal/store"
	"github.com/roach88/fsindex/internal/store/sqlite"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	handler http.Handler
	store   store.Store
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "records.db"), sqlite.Options{Logger: discardLogger, Metrics: m})
	require.NoError(t, err)

	w, err := s.Writer()
	require.NoError(t, err)
	for _, in := range []struct {
		path string
		at   string
		zone string
	}{
		{"/photos/b.jpg", "2024-01-02T10:00:00Z", "UTC"},
		{"/photos/c.jpg", "2024-01-03T00:00:00Z", "America/New_York"},
		{"/photos/a.jpg", "2024-01-01T09:30:00.5Z", "Europe/Berlin"},
	} {
		ts, err := time.Parse(time.RFC3339Nano, in.at)
		require.NoError(t, err)
		r, err := record.New(in.path, ts, in.zone)
		require.NoError(t, err)
		require.NoError(t, w.Accept(ctx, r))
	}
	require.NoError(t, w.Close(ctx))

	return &fixture{
		handler: NewHandler(Options{Store: s, Gatherer: reg, Metrics: m, Logger: discardLogger}),
		store:   s,
		reg:     reg,
	}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Result()
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return b
}

func TestList_Golden(t *testing.T) {
	f := newFixture(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name string
		path string
	}{
		{"list_all", "/list/FsCreateTime/0"},
		{"list_limit_2", "/list/FsCreateTime/2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.get(t, tt.path)
			body := readBody(t, resp)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
			assert.Equal(t, "false", resp.Trailer.Get(TruncatedTrailer))
			g.Assert(t, tt.name, body)
		})
	}
}

func TestList_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown key", "/list/Size/10", http.StatusBadRequest, "VALIDATION"},
		{"lowercase key", "/list/fscreatetime/10", http.StatusBadRequest, "VALIDATION"},
		{"non-numeric limit", "/list/FsCreateTime/ten", http.StatusBadRequest, "VALIDATION"},
		{"negative limit", "/list/FsCreateTime/-1", http.StatusBadRequest, "VALIDATION"},
		{"modify time", "/list/FsModifyTime/10", http.StatusNotImplemented, "UNSUPPORTED_ORDER_KEY"},
		{"exif time", "/list/ExifCreateTime/10", http.StatusNotImplemented, "UNSUPPORTED_ORDER_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.get(t, tt.path)
			body := readBody(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)

			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestList_Truncated(t *testing.T) {
	f := newFixture(t)
	raw := make([][3]any, store.MaxScanFaults+2)
	for i := range raw {
		raw[i] = [3]any{"/bad", "2030-01-01T00:00:00.000000000Z", "No/Zone"}
	}
	db, err := sqlOpen(f.store.Location())
	require.NoError(t, err)
	defer db.Close()
	for _, r := range raw {
		_, err := db.Exec("INSERT INTO records (path, creation_instant, creation_timezone) VALUES (?, ?, ?)", r[0], r[1], r[2])
		require.NoError(t, err)
	}

	resp := f.get(t, "/list/FsCreateTime/0")
	body := readBody(t, resp)
	assert.Equal(t, 3, strings.Count(string(body), "\n"))
	assert.Equal(t, "true", resp.Trailer.Get(TruncatedTrailer))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(readBody(t, resp)))
}

func TestMetrics_CountsRequestsByRoute(t *testing.T) {
	f := newFixture(t)
	readBody(t, f.get(t, "/list/FsCreateTime/1"))
	readBody(t, f.get(t, "/list/FsCreateTime/2"))
	readBody(t, f.get(t, "/list/Nope/2"))

	body := string(readBody(t, f.get(t, "/metrics")))
	assert.Contains(t, body, `fsindex_http_requests_total{code="200",route="/list/{order_by}/{limit}"} 2`)
	assert.Contains(t, body, `fsindex_http_requests_total{code="400",route="/list/{order_by}/{limit}"} 1`)
	assert.Contains(t, body, `fsindex_scans_opened_total{backend="sqlite"} 2`)
}

func TestServe_StreamsAndShutsDown(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", f.handler, discardLogger, func(a net.Addr) { addrCh <- a })
	}()
	addr := <-addrCh

	resp, err := http.Get("http://" + addr.String() + "/list/FsCreateTime/0")
	require.NoError(t, err)
	sc := bufio.NewScanner(resp.Body)
	var lines int
	for sc.Scan() {
		var item listItem
		require.NoError(t, json.Unmarshal(sc.Bytes(), &item))
		lines++
	}
	resp.Body.Close()
	assert.Equal(t, 3, lines)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
