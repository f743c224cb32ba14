package bus_test

import (
	"testing"
	"time"

	"github.com/srg/hrmon/internal/bus"
	"github.com/srg/hrmon/internal/hrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryNextOnEmptyBus(t *testing.T) {
	b := bus.New(4)

	_, ok := b.TryNext()
	assert.False(t, ok)
}

func TestSamplesArriveInOrder(t *testing.T) {
	b := bus.New(8)
	at := time.Now()

	for _, bpm := range []uint16{60, 62, 65} {
		b.PublishSample(hrs.Sample{BPM: bpm, ObservedAt: at})
	}

	for _, want := range []uint16{60, 62, 65} {
		ev, ok := b.TryNext()
		require.True(t, ok)
		require.True(t, ev.IsSample())
		assert.Equal(t, want, ev.Sample.BPM)
	}
}

func TestMessagesInterleaveWithSamples(t *testing.T) {
	b := bus.New(8)

	b.PublishMessage("connecting to AA:BB:CC:DD:EE:FF")
	b.PublishSample(hrs.Sample{BPM: 70, ObservedAt: time.Now()})
	b.PublishMessage("disconnected: peer closed the link")

	ev, ok := b.TryNext()
	require.True(t, ok)
	assert.False(t, ev.IsSample())
	assert.Contains(t, ev.Message, "connecting")

	ev, ok = b.TryNext()
	require.True(t, ok)
	assert.True(t, ev.IsSample())

	ev, ok = b.TryNext()
	require.True(t, ok)
	assert.Contains(t, ev.Message, "disconnected")
}

func TestOverflowDropsOldestNotNewest(t *testing.T) {
	b := bus.New(3)
	at := time.Now()

	for bpm := uint16(1); bpm <= 10; bpm++ {
		b.PublishSample(hrs.Sample{BPM: bpm, ObservedAt: at})
	}

	// Only the three most recent samples survive.
	var got []uint16
	for {
		ev, ok := b.TryNext()
		if !ok {
			break
		}
		got = append(got, ev.Sample.BPM)
	}
	assert.Equal(t, []uint16{8, 9, 10}, got)

	stats := b.Stats()
	assert.EqualValues(t, 10, stats.Sent)
	assert.EqualValues(t, 7, stats.Dropped)
}

func TestDefaultCapacityFallback(t *testing.T) {
	b := bus.New(0)
	for i := 0; i < bus.DefaultCapacity; i++ {
		b.PublishSample(hrs.Sample{BPM: uint16(i)})
	}
	assert.EqualValues(t, 0, b.Stats().Dropped)
}
