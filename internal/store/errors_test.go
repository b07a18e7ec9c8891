package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fsindex/internal/record"
)

func TestError_IsMatchesCodeSentinel(t *testing.T) {
	err := Unavailable("open", errors.New("permission denied"))

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrCommitFailure)
	assert.Equal(t, "open: BACKEND_UNAVAILABLE: permission denied", err.Error())

	wrapped := fmt.Errorf("index: %w", err)
	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeBackendUnavailable, code)
}

func TestCodeOf_RecordErrors(t *testing.T) {
	_, err := record.New("", baseTime, "UTC")
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, code)

	_, err = record.FsModifyTime.Column()
	code, ok = CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeUnsupportedOrderKey, code)

	_, ok = CodeOf(errors.New("other"))
	assert.False(t, ok)
}

func TestCheckLimit(t *testing.T) {
	assert.NoError(t, CheckLimit(0))
	assert.NoError(t, CheckLimit(5))
	assert.ErrorIs(t, CheckLimit(-1), ErrValidation)
}

func TestClosed(t *testing.T) {
	err := Closed("load")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, "load: CLOSED", err.Error())
}
