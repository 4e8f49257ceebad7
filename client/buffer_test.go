package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapBuffer_Unbounded(t *testing.T) {
	b := NewHeapBuffer(0)
	require.NoError(t, b.Append([]byte{1, 2}))
	require.NoError(t, b.Append([]byte{3, 4, 5}))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b.Bytes())

	b.Reset()
	assert.Empty(t, b.Bytes())
}

func TestHeapBuffer_CapExceeded(t *testing.T) {
	b := NewHeapBuffer(4)
	require.NoError(t, b.Append([]byte{1, 2, 3}))
	err := b.Append([]byte{4, 5})
	require.Error(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b.Bytes())
}

func TestStackBuffer_AppendAndReset(t *testing.T) {
	b := NewStackBuffer()
	require.NoError(t, b.Append([]byte{9, 8, 7}))
	assert.Equal(t, []byte{9, 8, 7}, b.Bytes())

	b.Reset()
	assert.Empty(t, b.Bytes())
}

func TestStackBuffer_CapacityExceeded(t *testing.T) {
	b := NewStackBuffer()
	big := make([]byte, StackBufferCapacity+1)
	err := b.Append(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity")
}
