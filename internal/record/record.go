package record

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ErrInvalid marks a record rejected at construction time.
var ErrInvalid = errors.New("invalid record")

// Record is one indexed filesystem entry.
//
// Path is an opaque identifier: it is not required to be unique and is never
// interpreted beyond being valid UTF-8. Paths are stored byte-for-byte; two
// names that differ only in Unicode normalization are different files.
type Record struct {
	Path         string
	CreationTime Zoned
}

// New validates path and builds a Record whose creation time is t observed in
// the named IANA zone.
func New(path string, t time.Time, zone string) (Record, error) {
	p, err := checkPath(path)
	if err != nil {
		return Record{}, err
	}
	z, err := NewZoned(t, zone)
	if err != nil {
		return Record{}, err
	}
	return Record{Path: p, CreationTime: z}, nil
}

// FromTime builds a Record using the zone carried by t's location.
// Fails for times in the "Local" pseudo zone; resolve the zone name first.
func FromTime(path string, t time.Time) (Record, error) {
	return New(path, t, t.Location().String())
}

// Equal reports whether both records name the same path at the same instant
// in the same zone.
func (r Record) Equal(o Record) bool {
	return r.Path == o.Path && r.CreationTime.Equal(o.CreationTime)
}

func (r Record) String() string {
	return fmt.Sprintf("%s\t%s", r.Path, r.CreationTime)
}

func checkPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalid)
	}
	if !utf8.ValidString(path) {
		return "", fmt.Errorf("%w: path is not valid UTF-8: %q", ErrInvalid, path)
	}
	return path, nil
}
