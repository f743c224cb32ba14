package ring_test

import (
	"testing"

	"github.com/srg/hrmon/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDropsOldestWhenFull(t *testing.T) {
	c := ring.New[int](3)

	for i := 1; i <= 5; i++ {
		c.Send(i)
	}

	// First two values were discarded; the last three survive in order.
	for _, want := range []int{3, 4, 5} {
		got, ok := c.TryReceive()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := c.TryReceive()
	assert.False(t, ok)

	stats := c.Stats()
	assert.EqualValues(t, 5, stats.Sent)
	assert.EqualValues(t, 2, stats.Dropped)
	assert.EqualValues(t, 3, stats.Delivered)
}

func TestTrySendRefusesWhenFull(t *testing.T) {
	c := ring.New[string](1)

	assert.True(t, c.TrySend("a"))
	assert.False(t, c.TrySend("b"))

	got, ok := c.TryReceive()
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestTryReceiveOnEmpty(t *testing.T) {
	c := ring.New[int](2)

	v, ok := c.TryReceive()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestReceiveAfterClose(t *testing.T) {
	c := ring.New[int](2)
	c.Send(7)
	c.Close()

	v, ok := c.Receive()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = c.Receive()
	assert.False(t, ok)
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { ring.New[int](0) })
}
