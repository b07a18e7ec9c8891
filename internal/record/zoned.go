package record

import (
	"fmt"
	"time"
)

// InstantLayout is the persisted form of an instant: always UTC, always nine
// fractional digits, so lexical order of the text equals chronological order.
const InstantLayout = "2006-01-02T15:04:05.000000000Z"

// Zoned is an instant paired with the IANA zone it was observed in.
// The zero value is not valid; build one with NewZoned.
type Zoned struct {
	instant time.Time
	zone    string
}

// Instants outside these UTC years have no InstantLayout form.
const (
	MinYear = 0
	MaxYear = 9999
)

// NewZoned pairs t with the named zone. The zone must be resolvable by
// time.LoadLocation; "Local" and "" are rejected because they do not name a
// zone another process could resolve. The UTC year of t must lie within
// [MinYear, MaxYear].
func NewZoned(t time.Time, zone string) (Zoned, error) {
	loc, err := loadZone(zone)
	if err != nil {
		return Zoned{}, err
	}
	if y := t.UTC().Year(); y < MinYear || y > MaxYear {
		return Zoned{}, fmt.Errorf("%w: year %d outside %d-%d", ErrInvalid, y, MinYear, MaxYear)
	}
	return Zoned{instant: t.In(loc), zone: zone}, nil
}

// Time returns the instant expressed in its zone.
func (z Zoned) Time() time.Time { return z.instant }

// Zone returns the IANA zone name.
func (z Zoned) Zone() string { return z.zone }

// IsZero reports whether z was never constructed.
func (z Zoned) IsZero() bool { return z.zone == "" }

// Equal compares instant and zone name.
func (z Zoned) Equal(o Zoned) bool {
	return z.zone == o.zone && z.instant.Equal(o.instant)
}

// Before orders by instant only.
func (z Zoned) Before(o Zoned) bool { return z.instant.Before(o.instant) }

func (z Zoned) String() string {
	return z.instant.Format(time.RFC3339Nano) + "[" + z.zone + "]"
}

// EncodeInstant renders the instant column value.
func (z Zoned) EncodeInstant() string {
	return z.instant.UTC().Format(InstantLayout)
}

func loadZone(zone string) (*time.Location, error) {
	if zone == "" || zone == "Local" {
		return nil, fmt.Errorf("%w: timezone %q is not an IANA zone name", ErrInvalid, zone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q: %v", ErrInvalid, zone, err)
	}
	return loc, nil
}
