package bytecode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/values"
)

func TestAddStringIsIdempotent(t *testing.T) {
	pool := NewConstantPool()
	id1, err := pool.AddString("hello")
	require.NoError(t, err)
	id2, err := pool.AddString("hello")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := pool.AddString("world")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestAddConstantIndices(t *testing.T) {
	pool := NewConstantPool()
	idx0, err := pool.AddConstant(values.Number(1))
	require.NoError(t, err)
	assert.Equal(t, 0, idx0)

	idx1, err := pool.AddConstant(values.Number(2))
	require.NoError(t, err)
	assert.Equal(t, 1, idx1)
	assert.True(t, pool.ValidConstant(idx1))
	assert.False(t, pool.ValidConstant(2))
}

func TestTooManyStrings(t *testing.T) {
	pool := NewConstantPool()
	for i := 0; i < MaxStrings; i++ {
		_, err := pool.AddString(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	_, err := pool.AddString("one too many, definitely unique")
	assert.ErrorIs(t, err, ErrTooManyStrings)
}
