package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderKey(t *testing.T) {
	for _, k := range []OrderKey{FsCreateTime, FsModifyTime, ExifCreateTime} {
		got, err := ParseOrderKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseOrderKey("fscreatetime")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOrderKey_Column(t *testing.T) {
	col, err := FsCreateTime.Column()
	require.NoError(t, err)
	assert.Equal(t, ColumnInstant, col)

	_, err = FsModifyTime.Column()
	assert.ErrorIs(t, err, ErrUnsupportedOrderKey)

	_, err = ExifCreateTime.Column()
	assert.ErrorIs(t, err, ErrUnsupportedOrderKey)

	_, err = OrderKey(42).Column()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "OrderKey(42)", OrderKey(42).String())
}
