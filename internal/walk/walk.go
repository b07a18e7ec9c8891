// Package walk traverses a directory tree and pushes one record per entry
// into a store.Sink.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/roach88/fsindex/internal/record"
	"github.com/roach88/fsindex/internal/store"
)

// DefaultZone is the zone creation times are recorded in when none is set.
const DefaultZone = "UTC"

// Options configures a walk.
type Options struct {
	// Zone is the IANA zone creation times are observed in.
	Zone string

	// FilesOnly skips directories and other non-regular entries.
	FilesOnly bool

	Logger *slog.Logger
}

// Stats summarizes one walk.
type Stats struct {
	Accepted int

	// Skipped counts entries whose path is not valid UTF-8.
	Skipped int

	// Stopped is the traversal error that ended the walk early, if any.
	// Records seen before it are still flushed.
	Stopped error
}

// Walk visits root and everything beneath it in lexical order, accepting a
// record for each entry, then flushes the sink.
//
// A traversal error ends the walk but is not returned: the records gathered
// so far are flushed and the error is reported in Stats.Stopped. Sink and
// context errors abort immediately and are returned.
func Walk(ctx context.Context, root string, sink store.Sink, opts Options) (Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	zone := opts.Zone
	if zone == "" {
		zone = DefaultZone
	}
	if _, err := record.NewZoned(time.Time{}, zone); err != nil {
		return Stats{}, fmt.Errorf("walk: %w", err)
	}

	var stats Stats
	errStop := errors.New("stop")

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			stats.Stopped = err
			logger.Warn("walk stopped", "path", path, "error", err)
			return errStop
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.FilesOnly && !d.Type().IsRegular() {
			return nil
		}
		if !utf8.ValidString(path) {
			stats.Skipped++
			logger.Debug("skipping non-UTF-8 path", "path", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Entry vanished between listing and stat.
			stats.Stopped = err
			logger.Warn("walk stopped", "path", path, "error", err)
			return errStop
		}

		r, err := record.New(path, creationTime(path, info), zone)
		if err != nil {
			return fmt.Errorf("walk: %s: %w", path, err)
		}
		if err := sink.Accept(ctx, r); err != nil {
			return err
		}
		stats.Accepted++
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return stats, err
	}

	if err := sink.Flush(ctx); err != nil {
		return stats, err
	}
	logger.Debug("walk finished", "root", root, "accepted", stats.Accepted, "skipped", stats.Skipped)
	return stats, nil
}
