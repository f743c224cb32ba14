// Package session owns the single active BLE connection: it drives the
// connect/subscribe/stream lifecycle, decodes notifications in arrival order
// and publishes every decoded sample to the state store and the sample bus.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/bus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/hrs"
	"github.com/srg/hrmon/internal/state"
)

// State is the session lifecycle position. Transitions run strictly
// Idle -> Connecting -> Subscribing -> Streaming -> Disconnected; no state is
// skipped, and Disconnected re-enters the cycle when a new device is selected.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Disconnect reasons surfaced to consumers.
const (
	ReasonConnectFailed   = "connection failed"
	ReasonSubscribeFailed = "subscribe failed"
	ReasonConnectionLost  = "connection lost"
	ReasonStopped         = "stopped"
)

// heartbeatInterval paces the idle tick of the streaming loop. The tick does
// no work itself; it keeps the loop turning between notifications so peer
// disconnection is observed promptly.
const heartbeatInterval = time.Second

// notifyBuffer bounds the raw-notification queue between the transport's
// delivery goroutine and the decoding loop.
const notifyBuffer = 128

// Target identifies the device a session should stream from.
type Target struct {
	Address string
	Name    string
}

// Options tunes a session.
type Options struct {
	// ConnectTimeout bounds the dial attempt. Zero means 30s.
	ConnectTimeout time.Duration
}

// Session supervises one device connection at a time. Starting a session
// while another run is active first drives the old run to Disconnected; at
// most one run occupies a non-idle state.
type Session struct {
	transport device.Transport
	store     *state.Store
	bus       *bus.Bus
	logger    *logrus.Logger

	connectTimeout time.Duration

	mu     sync.Mutex
	st     State
	reason string
	cancel context.CancelFunc
	done   chan struct{} // closed when the current run goroutine returns
}

// New creates a Session publishing into the given store and bus.
// A nil logger falls back to a default logrus logger.
func New(transport device.Transport, store *state.Store, b *bus.Bus, logger *logrus.Logger, opts *Options) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := 30 * time.Second
	if opts != nil && opts.ConnectTimeout > 0 {
		timeout = opts.ConnectTimeout
	}
	return &Session{
		transport:      transport,
		store:          store,
		bus:            b,
		logger:         logger,
		connectTimeout: timeout,
		st:             StateIdle,
	}
}

// State returns the current lifecycle state and, for Disconnected, the reason.
func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st, s.reason
}

// Start selects a device and begins streaming from it. Any active run is
// stopped first. The ctx governs the whole run: cancelling it stops the
// session the same way Stop does.
func (s *Session) Start(ctx context.Context, target Target) error {
	if target.Address == "" {
		return fmt.Errorf("device address is not set")
	}

	// Drive a previous run to Disconnected before taking its place.
	s.Stop()

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("session already active")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.st = StateConnecting
	s.reason = ""
	s.mu.Unlock()

	s.store.Reset(target.Address, target.Name)
	s.bus.PublishMessage("connecting to " + target.Address)
	s.logger.WithField("address", target.Address).Info("Connecting to heart rate sensor")

	go func() {
		defer close(done)
		s.run(runCtx, target)
	}()
	return nil
}

// Stop cancels the active run, if any, and blocks until it has released the
// transport handle and reached Disconnected. Stopping an inactive session is
// a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Session) run(ctx context.Context, target Target) {
	dialCtx, dialCancel := context.WithTimeout(ctx, s.connectTimeout)
	client, err := s.transport.Dial(dialCtx, target.Address)
	dialCancel()
	if err != nil {
		if ctx.Err() != nil {
			// User-initiated stop aborted the dial.
			s.finish(ReasonStopped, nil)
			return
		}
		s.logger.WithError(err).WithField("address", target.Address).Error("Connection failed")
		s.finish(ReasonConnectFailed, device.WrapStage(device.StageConnect, err))
		return
	}

	s.setState(StateSubscribing)

	// The transport's delivery goroutine must never block on the decoder:
	// payloads are copied into a bounded queue, dropping the oldest entry
	// under pressure. Arrival order within the queue is preserved.
	notifications := make(chan []byte, notifyBuffer)
	err = client.Subscribe(hrs.ServiceUUID, hrs.MeasurementUUID, func(payload []byte) {
		data := append([]byte(nil), payload...)
		select {
		case notifications <- data:
		default:
			select {
			case <-notifications:
			default:
			}
			notifications <- data
		}
	})
	if err != nil {
		s.logger.WithError(err).Error("Subscribe failed")
		_ = client.CancelConnection()
		s.finish(ReasonSubscribeFailed, device.WrapStage(device.StageSubscribe, err))
		return
	}

	s.store.SetDeviceName(client.Name())
	s.store.MarkConnected()
	s.setState(StateStreaming)
	s.bus.PublishMessage("streaming from " + displayName(client.Name(), target))
	s.logger.WithFields(logrus.Fields{
		"address": target.Address,
		"name":    client.Name(),
	}).Info("Heart rate streaming started")

	s.stream(ctx, client, notifications)
}

// stream is the session's streaming loop: decode notifications strictly in
// arrival order, mirror every sample into the store and bus, and watch for
// shutdown or peer disconnection.
func (s *Session) stream(ctx context.Context, client device.Client, notifications <-chan []byte) {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			// Release the transport handle before reporting Disconnected.
			_ = client.Unsubscribe(hrs.ServiceUUID, hrs.MeasurementUUID)
			_ = client.CancelConnection()
			s.finish(ReasonStopped, nil)
			return

		case <-client.Disconnected():
			s.logger.Info("Peer closed the connection")
			_ = client.CancelConnection()
			s.finish(ReasonConnectionLost, nil)
			return

		case payload := <-notifications:
			sample, err := hrs.Decode(payload, time.Now())
			if err != nil {
				// Malformed payloads are dropped; the stream continues.
				s.logger.WithError(err).Warn("Dropping malformed heart rate notification")
				continue
			}
			s.store.RecordSample(sample)
			s.bus.PublishSample(sample)

		case <-heartbeat.C:
			// Idle tick only; peer loss surfaces via Disconnected above.
		}
	}
}

// finish moves the session to Disconnected and reports the reason downstream.
func (s *Session) finish(reason string, err error) {
	s.mu.Lock()
	s.st = StateDisconnected
	s.reason = reason
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.store.MarkDisconnected()

	msg := "disconnected: " + reason
	if err != nil {
		msg = fmt.Sprintf("disconnected: %s (%v)", reason, err)
	}
	s.bus.PublishMessage(msg)
	s.logger.WithField("reason", reason).Info("Session disconnected")
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
}

func displayName(name string, target Target) string {
	switch {
	case name != "":
		return name
	case target.Name != "":
		return target.Name
	default:
		return target.Address
	}
}
