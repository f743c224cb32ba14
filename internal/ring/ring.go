// Package ring provides a bounded channel with drop-oldest overflow
// semantics, used to hand samples and events from producer goroutines to
// slower consumers without ever blocking the producer.
package ring

import "sync/atomic"

// Channel is a bounded channel-like buffer. When the buffer is full, Send
// discards the oldest element so the producer never blocks. Readers see the
// most recent values, which is the contract a live display wants: current
// over complete.
//
// Channel is safe for one producer and one consumer. Fanning a single Channel
// out to several consumers splits the stream arbitrarily between them; give
// each consumer its own Channel instead.
type Channel[T any] struct {
	ch      chan T
	metrics Metrics
}

// New creates a Channel with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		panic("ring: capacity must be > 0")
	}
	return &Channel[T]{ch: make(chan T, capacity)}
}

// Send inserts v, discarding the oldest buffered element when full.
// It never blocks indefinitely. Reports whether an element was dropped.
func (c *Channel[T]) Send(v T) bool {
	dropped := false
	select {
	case c.ch <- v:
	default:
		select {
		case <-c.ch:
			c.metrics.addDropped(1)
			dropped = true
		default:
			// Consumer raced us and emptied the buffer.
		}
		c.ch <- v
	}
	c.metrics.addSent(1)
	return dropped
}

// TrySend inserts v only if there is room. Reports whether v was accepted.
func (c *Channel[T]) TrySend(v T) bool {
	select {
	case c.ch <- v:
		c.metrics.addSent(1)
		return true
	default:
		return false
	}
}

// Receive blocks until a value is available or the channel is closed.
// ok is false once the channel is closed and drained.
func (c *Channel[T]) Receive() (v T, ok bool) {
	v, ok = <-c.ch
	if ok {
		c.metrics.addDelivered(1)
	}
	return
}

// TryReceive performs a non-blocking receive. Returns (zero, false) when no
// value is buffered.
func (c *Channel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-c.ch:
		if ok {
			c.metrics.addDelivered(1)
		}
		return
	default:
		var zero T
		return zero, false
	}
}

// C exposes the underlying receive-only channel for select loops. Reads via C
// bypass the Delivered metric.
func (c *Channel[T]) C() <-chan T {
	return c.ch
}

// Len returns the number of buffered elements.
func (c *Channel[T]) Len() int { return len(c.ch) }

// Cap returns the buffer capacity.
func (c *Channel[T]) Cap() int { return cap(c.ch) }

// Close closes the channel. Send after Close panics.
func (c *Channel[T]) Close() { close(c.ch) }

// Stats returns a snapshot of the channel counters.
func (c *Channel[T]) Stats() Metrics {
	return Metrics{
		Sent:      atomic.LoadInt64(&c.metrics.Sent),
		Delivered: atomic.LoadInt64(&c.metrics.Delivered),
		Dropped:   atomic.LoadInt64(&c.metrics.Dropped),
	}
}

// Metrics tracks channel throughput with atomic counters.
type Metrics struct {
	Sent      int64
	Delivered int64
	Dropped   int64
}

func (m *Metrics) addSent(n int)      { atomic.AddInt64(&m.Sent, int64(n)) }
func (m *Metrics) addDelivered(n int) { atomic.AddInt64(&m.Delivered, int64(n)) }
func (m *Metrics) addDropped(n int)   { atomic.AddInt64(&m.Dropped, int64(n)) }
