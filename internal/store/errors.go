package store

import (
	"errors"
	"fmt"

	"github.com/roach88/fsindex/internal/record"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Code.
var (
	ErrValidation          = record.ErrInvalid
	ErrScanFault           = record.ErrMalformedRow
	ErrUnsupportedOrderKey = record.ErrUnsupportedOrderKey
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrCommitFailure       = errors.New("commit failure")
	ErrClosed              = errors.New("handle closed")
)

// ErrorCode categorizes storage errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input rejected before buffering.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeBackendUnavailable indicates the backend could not be opened or created.
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// ErrCodeCommitFailure indicates an atomic batch commit failed.
	// The batch stays buffered in the writer.
	ErrCodeCommitFailure ErrorCode = "COMMIT_FAILURE"

	// ErrCodeUnsupportedOrderKey indicates an order key with no stored column.
	ErrCodeUnsupportedOrderKey ErrorCode = "UNSUPPORTED_ORDER_KEY"

	// ErrCodeClosed indicates use of a writer, reader or cursor after Close.
	ErrCodeClosed ErrorCode = "CLOSED"
)

var sentinels = map[ErrorCode]error{
	ErrCodeValidation:          ErrValidation,
	ErrCodeBackendUnavailable:  ErrBackendUnavailable,
	ErrCodeCommitFailure:       ErrCommitFailure,
	ErrCodeUnsupportedOrderKey: ErrUnsupportedOrderKey,
	ErrCodeClosed:              ErrClosed,
}

// Error is a storage error with a category, the operation that failed and
// the underlying cause.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && target == s
}

// CodeOf returns the code of the first *Error in err's chain.
// Plain record validation errors map to ErrCodeValidation.
func CodeOf(err error) (ErrorCode, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	switch {
	case errors.Is(err, ErrUnsupportedOrderKey):
		return ErrCodeUnsupportedOrderKey, true
	case errors.Is(err, ErrValidation):
		return ErrCodeValidation, true
	}
	return "", false
}

// NewError wraps err with a code and operation name.
func NewError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Unavailable wraps an open/create failure.
func Unavailable(op string, err error) *Error {
	return NewError(ErrCodeBackendUnavailable, op, err)
}

// Closed reports use after Close.
func Closed(op string) *Error {
	return NewError(ErrCodeClosed, op, nil)
}

// IsCommitFailure reports whether err is a failed batch commit.
func IsCommitFailure(err error) bool {
	return errors.Is(err, ErrCommitFailure)
}
