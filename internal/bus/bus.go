// Package bus hands decoded samples and connection-state messages from the
// session to a single display consumer. The queue is bounded and lossy: a
// consumer slower than the sensor sees the most recent values, not every
// historical one.
package bus

import (
	"github.com/srg/hrmon/internal/hrs"
	"github.com/srg/hrmon/internal/ring"
)

// DefaultCapacity buffers a few seconds of samples at typical 1 Hz strap
// notification rates.
const DefaultCapacity = 64

// Event is one item the display consumer polls for: either a decoded sample
// or an informational message about a connection-state change.
type Event struct {
	Sample  *hrs.Sample
	Message string
}

// IsSample reports whether the event carries a sample.
func (e Event) IsSample() bool { return e.Sample != nil }

// Bus is a bounded single-producer, single-consumer hand-off. The producer
// never blocks; overflow discards the oldest unread entries. Do not fan one
// Bus out to several consumers.
type Bus struct {
	ch *ring.Channel[Event]
}

// New creates a Bus. Non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: ring.New[Event](capacity)}
}

// PublishSample enqueues a decoded sample, discarding the oldest unread
// event when the consumer lags.
func (b *Bus) PublishSample(sample hrs.Sample) {
	b.ch.Send(Event{Sample: &sample})
}

// PublishMessage enqueues an informational connection-state message.
func (b *Bus) PublishMessage(msg string) {
	b.ch.Send(Event{Message: msg})
}

// TryNext returns the next unread event without blocking. ok is false when
// nothing is available; the consumer is expected to poll at a short interval.
func (b *Bus) TryNext() (Event, bool) {
	return b.ch.TryReceive()
}

// Stats exposes the underlying queue counters.
func (b *Bus) Stats() ring.Metrics {
	return b.ch.Stats()
}
