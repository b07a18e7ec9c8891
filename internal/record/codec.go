package record

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ErrMalformedRow marks a persisted row that cannot be decoded into a Record.
var ErrMalformedRow = errors.New("malformed row")

// Row is the persisted shape shared by every backend: three text columns.
type Row struct {
	Path             string `parquet:"path" json:"path"`
	CreationInstant  string `parquet:"creation_instant" json:"creation_instant"`
	CreationTimezone string `parquet:"creation_timezone" json:"creation_timezone"`
}

// Column names of the persisted schema.
const (
	ColumnPath     = "path"
	ColumnInstant  = "creation_instant"
	ColumnTimezone = "creation_timezone"
)

// Encode converts r into its persisted row.
func Encode(r Record) Row {
	return Row{
		Path:             r.Path,
		CreationInstant:  r.CreationTime.EncodeInstant(),
		CreationTimezone: r.CreationTime.Zone(),
	}
}

// Decode validates a persisted row. Failures wrap ErrMalformedRow so readers
// can count them without aborting the scan.
func Decode(row Row) (Record, error) {
	if row.Path == "" {
		return Record{}, fmt.Errorf("%w: empty path", ErrMalformedRow)
	}
	if !utf8.ValidString(row.Path) {
		return Record{}, fmt.Errorf("%w: path is not valid UTF-8", ErrMalformedRow)
	}
	t, err := time.Parse(InstantLayout, row.CreationInstant)
	if err != nil {
		return Record{}, fmt.Errorf("%w: creation_instant %q: %v", ErrMalformedRow, row.CreationInstant, err)
	}
	z, err := NewZoned(t, row.CreationTimezone)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	return Record{Path: row.Path, CreationTime: z}, nil
}

// DecodeValues validates a row whose column values came from a driver that
// does not enforce column types. A column holding anything other than text is
// malformed.
func DecodeValues(path, instant, zone any) (Record, error) {
	p, err := textValue(ColumnPath, path)
	if err != nil {
		return Record{}, err
	}
	i, err := textValue(ColumnInstant, instant)
	if err != nil {
		return Record{}, err
	}
	z, err := textValue(ColumnTimezone, zone)
	if err != nil {
		return Record{}, err
	}
	return Decode(Row{Path: p, CreationInstant: i, CreationTimezone: z})
}

func textValue(column string, v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		if !utf8.Valid(v) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrMalformedRow, column)
		}
		return string(v), nil
	case nil:
		return "", fmt.Errorf("%w: %s is NULL", ErrMalformedRow, column)
	default:
		return "", fmt.Errorf("%w: %s has type %T, want text", ErrMalformedRow, column, v)
	}
}
