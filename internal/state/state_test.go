package state_test

import (
	"sync"
	"testing"
	"time"

	"github.com/srg/hrmon/internal/hrs"
	"github.com/srg/hrmon/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStartsEmpty(t *testing.T) {
	store := state.NewStore()

	snap := store.Snapshot()
	assert.Empty(t, snap.DeviceAddress)
	assert.False(t, snap.Connected)
	assert.Nil(t, snap.LastSample)
}

func TestResetClearsPreviousSample(t *testing.T) {
	store := state.NewStore()
	store.Reset("AA:BB:CC:DD:EE:FF", "HRM-Dual")
	store.RecordSample(hrs.Sample{BPM: 72, ObservedAt: time.Now()})

	store.Reset("11:22:33:44:55:66", "Other Strap")

	snap := store.Snapshot()
	assert.Equal(t, "11:22:33:44:55:66", snap.DeviceAddress)
	assert.Equal(t, "Other Strap", snap.DeviceName)
	assert.False(t, snap.Connected)
	assert.Nil(t, snap.LastSample)
}

func TestDisconnectPreservesLastSample(t *testing.T) {
	store := state.NewStore()
	store.Reset("AA:BB:CC:DD:EE:FF", "HRM-Dual")
	store.RecordSample(hrs.Sample{BPM: 140, ObservedAt: time.Now()})

	store.MarkDisconnected()

	snap := store.Snapshot()
	assert.False(t, snap.Connected)
	require.NotNil(t, snap.LastSample)
	assert.EqualValues(t, 140, snap.LastSample.BPM)
}

func TestSetDeviceNameIgnoresEmpty(t *testing.T) {
	store := state.NewStore()
	store.Reset("AA:BB:CC:DD:EE:FF", "HRM-Dual")

	store.SetDeviceName("")
	assert.Equal(t, "HRM-Dual", store.Snapshot().DeviceName)

	store.SetDeviceName("HRM-Pro")
	assert.Equal(t, "HRM-Pro", store.Snapshot().DeviceName)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := state.NewStore()
	store.RecordSample(hrs.Sample{BPM: 60, ObservedAt: time.Now()})

	snap := store.Snapshot()
	snap.LastSample.BPM = 999

	assert.EqualValues(t, 60, store.Snapshot().LastSample.BPM)
}

// Readers must always observe a sample whose bpm and timestamp were written
// together, even while the writer is updating continuously.
func TestSnapshotNeverTearsUnderConcurrentWrites(t *testing.T) {
	store := state.NewStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			// bpm and timestamp advance in lockstep; a torn read would
			// surface as a mismatched pair.
			store.RecordSample(hrs.Sample{
				BPM:        uint16(i % 200),
				ObservedAt: base.Add(time.Duration(i%200) * time.Second),
			})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				snap := store.Snapshot()
				if snap.LastSample == nil {
					continue
				}
				wantAt := base.Add(time.Duration(snap.LastSample.BPM) * time.Second)
				assert.Equal(t, wantAt, snap.LastSample.ObservedAt)
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
}
