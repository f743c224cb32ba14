// Package state holds the latest known heart-rate state. One Store instance
// is written by the active session and read by any number of consumers; every
// read observes one coherent write, never a partial update.
package state

import (
	"sync"

	"github.com/srg/hrmon/internal/hrs"
)

// Snapshot is a coherent copy of the session's live record.
type Snapshot struct {
	DeviceAddress string
	DeviceName    string
	Connected     bool
	LastSample    *hrs.Sample // nil until the first decoded sample
}

// Store synchronizes access to the snapshot. Instances are injected, not
// global, so tests can run isolated stores side by side.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	if s.snap.LastSample != nil {
		sample := *s.snap.LastSample
		snap.LastSample = &sample
	}
	return snap
}

// Reset binds the store to a newly selected device. The previous device's
// last sample does not carry over.
func (s *Store) Reset(address, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{DeviceAddress: address, DeviceName: name}
}

// SetDeviceName refreshes the name once the connection reports it. Names from
// the link layer are more reliable than advertisement payloads.
func (s *Store) SetDeviceName(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.DeviceName = name
}

// MarkConnected records that the session entered streaming.
func (s *Store) MarkConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Connected = true
}

// MarkDisconnected records the end of streaming. The last sample stays in
// place so consumers can keep showing the last known value.
func (s *Store) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Connected = false
}

// RecordSample stores a decoded sample together with the connected flag in
// one write, so readers never pair a fresh bpm with a stale timestamp.
func (s *Store) RecordSample(sample hrs.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastSample = &sample
	s.snap.Connected = true
}
