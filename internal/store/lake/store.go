package lake

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/store"
)

// Backend is the label used in logs and metrics.
const Backend = "lake"

// DefaultCommitRetries bounds how many lost version races a commit absorbs.
const DefaultCommitRetries = 20

// Clock supplies commit timestamps.
type Clock interface {
	Now() time.Time
}

// Options configures handles opened from a Store.
type Options struct {
	BatchThreshold int
	Retry          store.RetryPolicy
	Logger         *slog.Logger
	Metrics        *metrics.Metrics

	// Clock defaults to the system clock.
	Clock Clock

	// NewID names data files and transactions. Defaults to random UUIDs.
	NewID func() string

	// CommitRetries defaults to DefaultCommitRetries.
	CommitRetries int
}

// Env is the execution context shared by every table handle of a store.
type Env struct {
	Logger        *slog.Logger
	Clock         Clock
	NewID         func() string
	CommitRetries int
}

func (o Options) env() Env {
	env := Env{
		Logger:        o.Logger,
		Clock:         o.Clock,
		NewID:         o.NewID,
		CommitRetries: o.CommitRetries,
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Clock == nil {
		env.Clock = systemClock{}
	}
	if env.NewID == nil {
		env.NewID = uuid.NewString
	}
	if env.CommitRetries <= 0 {
		env.CommitRetries = DefaultCommitRetries
	}
	return env
}

// Store is the lake store factory. Every handle it returns attaches its own
// table view.
type Store struct {
	root string
	opts Options
	env  Env
}

var _ store.Store = (*Store)(nil)

// Open creates or attaches to the table at location, which is a local path
// or a file:// URI.
func Open(ctx context.Context, location string, opts Options) (*Store, error) {
	root, err := ParseLocation(location)
	if err != nil {
		return nil, store.Unavailable("open lake", err)
	}

	env := opts.env()
	if _, err := openTable(ctx, root, env); err != nil {
		return nil, store.Unavailable("open lake", err)
	}

	env.Logger.Debug("lake store opened", "root", root)
	return &Store{root: root, opts: opts, env: env}, nil
}

// ParseLocation resolves a table location to a directory path.
func ParseLocation(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty table location")
	}
	if !strings.Contains(location, "://") {
		return filepath.Clean(location), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse table location: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported table scheme %q", u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("remote file host %q not supported", u.Host)
	}
	if u.Path == "" {
		return "", fmt.Errorf("empty table path in %q", location)
	}
	return filepath.Clean(filepath.FromSlash(u.Path)), nil
}

// Location returns the table directory.
func (s *Store) Location() string {
	return s.root
}

// Table attaches a fresh handle on the table.
func (s *Store) Table(ctx context.Context) (*Table, error) {
	t, err := openTable(ctx, s.root, s.env)
	if err != nil {
		return nil, store.Unavailable("attach lake table", err)
	}
	return t, nil
}

// Writer opens a writer with its own table handle.
func (s *Store) Writer() (store.Writer, error) {
	t, err := s.Table(context.Background())
	if err != nil {
		return nil, err
	}
	return store.NewBatchWriter(&committer{table: t}, store.WriterOptions{
		Backend:   Backend,
		Threshold: s.opts.BatchThreshold,
		Retry:     s.opts.Retry,
		Logger:    s.env.Logger,
		Metrics:   s.opts.Metrics,
	}), nil
}

// Reader opens a reader with its own table handle.
func (s *Store) Reader() (store.Reader, error) {
	t, err := s.Table(context.Background())
	if err != nil {
		return nil, err
	}
	return &Reader{table: t, logger: s.env.Logger, metrics: s.opts.Metrics}, nil
}
