// Package scanner performs time-boxed BLE advertisement sweeps and collapses
// the observed frames into one record per peripheral address.
package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/gatt"
	"github.com/srg/hrmon/internal/ring"
)

// Scan window profiles. The thorough profile serves manual discovery; the
// fast profile confirms presence of an already known device before dialing.
const (
	ThoroughDuration = 10 * time.Second
	FastDuration     = 2 * time.Second
)

// AdvertisementRecord is a snapshot of one peripheral observed during a scan
// window. Records are ephemeral; they live for the duration of one sweep and
// are never persisted.
type AdvertisementRecord struct {
	Address      string    `json:"address"`
	LocalName    string    `json:"local_name,omitempty"`
	RSSI         int       `json:"rssi"`
	ServiceUUIDs []string  `json:"service_uuids,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// EventType marks whether a device was newly discovered or re-observed.
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

// Event reports one scanner observation for watch-style consumers.
type Event struct {
	Type      EventType
	Record    AdvertisementRecord
	Timestamp time.Time
}

// Options configures one scan sweep.
type Options struct {
	// Duration bounds the sweep; zero scans until the context is done.
	Duration time.Duration

	// AllowDuplicates asks the stack to keep delivering frames from already
	// seen peripherals so RSSI and names stay current during the window.
	AllowDuplicates bool

	// AllowList restricts results to these addresses when non-empty.
	AllowList []string

	// BlockList hides these addresses.
	BlockList []string
}

// ThoroughOptions returns the discovery profile used for manual scans.
func ThoroughOptions() *Options {
	return &Options{Duration: ThoroughDuration, AllowDuplicates: true}
}

// FastOptions returns the short reconnect profile, restricted to one address.
func FastOptions(address string) *Options {
	return &Options{
		Duration:        FastDuration,
		AllowDuplicates: true,
		AllowList:       []string{address},
	}
}

// entry tracks one peripheral across the frames of a single sweep.
type entry struct {
	mu     sync.Mutex
	record AdvertisementRecord
	index  uint64 // discovery order, for stable downstream sorting
}

// Scanner handles BLE device discovery.
type Scanner struct {
	entries *hashmap.Map[string, *entry]
	nextIdx atomic.Uint64
	events  *ring.Channel[Event]
	logger  *logrus.Logger

	opts *Options // options of the sweep in progress
}

// New creates a Scanner. A nil logger falls back to a default logrus logger.
func New(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		events: ring.New[Event](100),
		logger: logger,
	}
}

// Events returns a read-only stream of observations from the current sweep.
// The stream is bounded and lossy; slow readers see the most recent events.
func (s *Scanner) Events() <-chan Event {
	return s.events.C()
}

// Scan sweeps for advertisements and returns one record per distinct address,
// ordered by discovery. The last frame observed for an address wins, except
// that a non-empty name and known services survive frames that omit them
// (scan responses and plain advertisements carry different fields).
//
// An empty result is not a failure. Expiry of the configured window is the
// normal completion path. Cancelling ctx aborts the sweep and discards the
// partially collected records.
func (s *Scanner) Scan(ctx context.Context, opts *Options) ([]AdvertisementRecord, error) {
	if opts == nil {
		opts = ThoroughOptions()
	}

	s.entries = hashmap.New[string, *entry]()
	s.nextIdx.Store(0)
	s.opts = opts
	defer func() { s.opts = nil }()

	transport, err := device.Factory()
	if err != nil {
		return nil, device.WrapStage(device.StageScan, err)
	}

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan")

	err = transport.Scan(scanCtx, opts.AllowDuplicates, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, device.WrapStage(device.StageScan, err)
	}

	// Caller-initiated cancellation discards partial results.
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	records := s.snapshot()
	s.logger.WithField("device_count", len(records)).Info("BLE scan completed")
	return records, nil
}

// handleAdvertisement folds one frame into the sweep's entry map.
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	if !s.shouldInclude(adv, s.opts) {
		return
	}

	address := adv.Addr()
	e, existing := s.entries.GetOrInsert(address, &entry{
		index: s.nextIdx.Add(1),
	})

	e.mu.Lock()
	e.record.Address = address
	e.record.RSSI = adv.RSSI()
	e.record.LastSeen = time.Now()
	if name := adv.LocalName(); name != "" {
		e.record.LocalName = name
	}
	e.record.ServiceUUIDs = mergeServices(e.record.ServiceUUIDs, adv.Services())
	record := e.record
	e.mu.Unlock()

	eventType := EventNew
	if existing {
		eventType = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  record.LocalName,
			"address": record.Address,
			"rssi":    record.RSSI,
		}).Info("Discovered new device")
	}

	s.events.Send(Event{Type: eventType, Record: record, Timestamp: record.LastSeen})
}

// shouldInclude applies the allow/block lists.
func (s *Scanner) shouldInclude(adv device.Advertisement, opts *Options) bool {
	addr := adv.Addr()

	for _, blocked := range opts.BlockList {
		if addr == blocked {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		for _, allowed := range opts.AllowList {
			if addr == allowed {
				return true
			}
		}
		return false
	}

	return true
}

// snapshot collects the sweep's records in discovery order.
func (s *Scanner) snapshot() []AdvertisementRecord {
	type ordered struct {
		record AdvertisementRecord
		index  uint64
	}

	collected := make([]ordered, 0, s.entries.Len())
	s.entries.Range(func(_ string, e *entry) bool {
		e.mu.Lock()
		collected = append(collected, ordered{record: e.record, index: e.index})
		e.mu.Unlock()
		return true
	})

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})

	records := make([]AdvertisementRecord, len(collected))
	for i, o := range collected {
		records[i] = o.record
	}
	return records
}

// mergeServices appends service UUIDs not already present, in normalized form.
func mergeServices(existing, observed []string) []string {
	for _, svc := range observed {
		normalized := gatt.NormalizeUUID(svc)
		found := false
		for _, have := range existing {
			if have == normalized {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, normalized)
		}
	}
	return existing
}
