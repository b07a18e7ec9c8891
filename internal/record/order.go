package record

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOrderKey is returned for order keys with no stored column.
var ErrUnsupportedOrderKey = errors.New("unsupported order key")

// OrderKey selects the column a read is sorted by.
type OrderKey int

const (
	FsCreateTime OrderKey = iota
	FsModifyTime
	ExifCreateTime
)

var orderKeyNames = map[OrderKey]string{
	FsCreateTime:   "FsCreateTime",
	FsModifyTime:   "FsModifyTime",
	ExifCreateTime: "ExifCreateTime",
}

func (k OrderKey) String() string {
	if s, ok := orderKeyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OrderKey(%d)", int(k))
}

// ParseOrderKey accepts the exact variant name, e.g. "FsCreateTime".
func ParseOrderKey(s string) (OrderKey, error) {
	for k, name := range orderKeyNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown order key %q", ErrInvalid, s)
}

// Column returns the persisted column backing k.
// FsModifyTime and ExifCreateTime are declared but have no column yet.
func (k OrderKey) Column() (string, error) {
	switch k {
	case FsCreateTime:
		return ColumnInstant, nil
	case FsModifyTime, ExifCreateTime:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOrderKey, k)
	default:
		return "", fmt.Errorf("%w: unknown order key %d", ErrInvalid, int(k))
	}
}
