// Package backend opens a store.Store for a tagged location.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fsindex/internal/metrics"
	"github.com/roach88/fsindex/internal/store"
	"github.com/roach88/fsindex/internal/store/lake"
	"github.com/roach88/fsindex/internal/store/sqlite"
)

// Kind selects a storage backend.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindLake   Kind = "lake"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindSQLite, KindLake}

// ParseKind maps a backend name to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (want sqlite or lake)", s)
}

// Location is a backend kind plus its backend-specific address: a database
// path for sqlite, a directory path or file:// URI for lake.
type Location struct {
	Kind Kind
	Path string
}

func (l Location) String() string {
	return string(l.Kind) + ":" + l.Path
}

// Options is the execution context handed to the backend. Nothing is read
// from package-level state.
type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	BatchThreshold int
	Retry          store.RetryPolicy

	// Lake only.
	Clock         lake.Clock
	NewID         func() string
	CommitRetries int
}

// Open creates or attaches to the store at loc.
func Open(ctx context.Context, loc Location, opts Options) (store.Store, error) {
	if loc.Path == "" {
		return nil, store.Unavailable("open", fmt.Errorf("empty %s location", loc.Kind))
	}

	switch loc.Kind {
	case KindSQLite:
		return sqlite.Open(ctx, loc.Path, sqlite.Options{
			BatchThreshold: opts.BatchThreshold,
			Retry:          opts.Retry,
			Logger:         opts.Logger,
			Metrics:        opts.Metrics,
		})
	case KindLake:
		return lake.Open(ctx, loc.Path, lake.Options{
			BatchThreshold: opts.BatchThreshold,
			Retry:          opts.Retry,
			Logger:         opts.Logger,
			Metrics:        opts.Metrics,
			Clock:          opts.Clock,
			NewID:          opts.NewID,
			CommitRetries:  opts.CommitRetries,
		})
	default:
		return nil, store.Unavailable("open", fmt.Errorf("unknown backend %q", loc.Kind))
	}
}
