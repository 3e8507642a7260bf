package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.NoError(t, q.Enqueue(3))
	assert.True(t, q.IsFull())
	assert.ErrorIs(t, q.Enqueue(4), ErrQueueFull)

	v, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	for _, want := range []int{1, 2, 3} {
		got, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.True(t, q.IsEmpty())
	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueWrapsAround(t *testing.T) {
	q := NewRingQueue[string](2)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue("a"))
		require.NoError(t, q.Enqueue("b"))
		first, _ := q.Dequeue()
		second, _ := q.Dequeue()
		assert.Equal(t, "a", first)
		assert.Equal(t, "b", second)
	}
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 2, q.Cap())
}
