package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathGenerator_CountAndUniqueness(t *testing.T) {
	paths := Paths(3, 5, 1)
	require.Len(t, paths, 125)

	unique := make(map[string]bool)
	for _, p := range paths {
		unique[p] = true
	}
	assert.Len(t, unique, 125)
}

func TestPathGenerator_Deterministic(t *testing.T) {
	assert.Equal(t, Paths(2, 4, 7), Paths(2, 4, 7))
	assert.NotEqual(t, Paths(2, 4, 7), Paths(2, 4, 8))
}

func TestPathGenerator_RejectsEmptyShape(t *testing.T) {
	_, err := NewPathGenerator(0, 3, 1)
	assert.Error(t, err)
	_, err = NewPathGenerator(3, 0, 1)
	assert.Error(t, err)
}

func TestPathGenerator_ExhaustedStaysExhausted(t *testing.T) {
	g, err := NewPathGenerator(1, 2, 1)
	require.NoError(t, err)

	_, ok := g.Next()
	assert.True(t, ok)
	_, ok = g.Next()
	assert.True(t, ok)
	_, ok = g.Next()
	assert.False(t, ok)
	_, ok = g.Next()
	assert.False(t, ok)
}
