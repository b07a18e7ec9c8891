// Package httpapi serves ordered record listings over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/record"
	"github.com/roach88/fsindex/internal/store"
)

// TruncatedTrailer is set to "true" after a listing that the malformed row
// cap cut short.
const TruncatedTrailer = "X-Fsindex-Truncated"

// Options configures the handler.
type Options struct {
	Store store.Store

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// listItem is one NDJSON line of a listing.
type listItem struct {
	Path         string `json:"path"`
	CreationTime string `json:"creation_time"`
	Timezone     string `json:"timezone"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewHandler builds the router.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{store: opts.Store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe(logger, opts.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}
	r.Get("/list/{order_by}/{limit}", h.list)

	return r
}

type handler struct {
	store  store.Store
	logger *slog.Logger
}

// list streams records as newline-delimited JSON, flushing after each line.
// A limit of 0 lists everything.
func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	key, err := record.ParseOrderKey(chi.URLParam(r, "order_by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, store.ErrCodeValidation)
		return
	}
	limit, err := strconv.Atoi(chi.URLParam(r, "limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"), store.ErrCodeValidation)
		return
	}

	reader, err := h.store.Reader()
	if err != nil {
		h.fail(w, err)
		return
	}
	defer reader.Close()

	cursor, err := reader.Load(r.Context(), key, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer cursor.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Trailer", TruncatedTrailer)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	n := 0
	for rec := range cursor.All() {
		if err := enc.Encode(toItem(rec)); err != nil {
			// Client went away.
			h.logger.Debug("list aborted", "error", err, "sent", n)
			return
		}
		n++
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := cursor.Err(); err != nil {
		h.logger.Error("list scan failed", "error", err, "sent", n)
	}
	w.Header().Set(TruncatedTrailer, strconv.FormatBool(cursor.Truncated()))
}

func toItem(r record.Record) listItem {
	return listItem{
		Path:         r.Path,
		CreationTime: r.CreationTime.Time().Format(time.RFC3339Nano),
		Timezone:     r.CreationTime.Zone(),
	}
}

// fail maps a store error to a status code.
func (h *handler) fail(w http.ResponseWriter, err error) {
	code, _ := store.CodeOf(err)
	switch code {
	case store.ErrCodeValidation:
		writeError(w, http.StatusBadRequest, err, code)
	case store.ErrCodeUnsupportedOrderKey:
		writeError(w, http.StatusNotImplemented, err, code)
	case store.ErrCodeBackendUnavailable:
		h.logger.Error("backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, err, code)
	default:
		h.logger.Error("list failed", "error", err)
		writeError(w, http.StatusInternalServerError, err, code)
	}
}

func writeError(w http.ResponseWriter, status int, err error, code store.ErrorCode) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error(), Code: string(code)})
}

// Serve runs the handler on addr until ctx is cancelled, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if ready != nil {
		ready(ln.Addr())
	}
	logger.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("http server stopped")
		return nil
	}
}
