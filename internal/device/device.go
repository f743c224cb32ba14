// Package device defines the capability boundary against the BLE stack:
// time-boxed advertisement scanning, connect-by-address, characteristic
// notification subscription and disconnect signaling. The rest of the
// pipeline depends on these interfaces only; the go-ble backed
// implementation lives next to them behind an overridable factory.
package device

import (
	"context"
	"errors"
	"fmt"
)

// Stage identifies the pipeline phase a transport failure occurred in.
type Stage string

const (
	StageScan      Stage = "scan"
	StageConnect   Stage = "connect"
	StageSubscribe Stage = "subscribe"
)

// TransportError wraps a BLE stack failure with the stage it happened in.
// Scan failures are retryable by re-invoking the scan; connect and subscribe
// failures are fatal to the session that triggered them.
type TransportError struct {
	Stage Stage
	Err   error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is allows errors.Is to match TransportError values by stage.
func (e *TransportError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Stage == t.Stage
}

// Sentinel errors for errors.Is comparisons by stage.
var (
	ErrScanFailed      = &TransportError{Stage: StageScan}
	ErrConnectFailed   = &TransportError{Stage: StageConnect}
	ErrSubscribeFailed = &TransportError{Stage: StageSubscribe}
)

// WrapStage wraps err as a TransportError for the given stage. Returns nil
// for a nil err; an err that already carries a stage passes through.
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Stage: stage, Err: err}
}

// Advertisement is one advertisement frame observed during a scan.
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Services() []string
	Connectable() bool
}

// AdvHandler receives advertisement frames as the radio observes them. It is
// invoked from the transport's goroutine and must not block.
type AdvHandler func(Advertisement)

// Transport is the capability set the pipeline requires from a BLE central.
type Transport interface {
	// Scan sweeps for advertisements until ctx is done, invoking h for each
	// frame. With allowDup false the stack suppresses repeated frames from
	// the same peripheral. Context cancellation and deadline expiry are the
	// normal termination paths, not errors.
	Scan(ctx context.Context, allowDup bool, h AdvHandler) error

	// Dial opens a connection to the peripheral at addr. The ctx bounds the
	// attempt; cancelling it aborts an in-flight dial.
	Dial(ctx context.Context, addr string) (Client, error)
}

// Client is one live peripheral connection.
type Client interface {
	Addr() string
	Name() string

	// Subscribe requests notification delivery for a characteristic.
	// h is invoked from the transport's delivery goroutine with the raw
	// payload; implementations hand the bytes off without blocking.
	Subscribe(serviceUUID, charUUID string, h func(payload []byte)) error

	// Unsubscribe stops notification delivery for a characteristic.
	Unsubscribe(serviceUUID, charUUID string) error

	// Disconnected returns a channel closed when the peer drops the link.
	Disconnected() <-chan struct{}

	// CancelConnection tears the link down and releases the handle.
	CancelConnection() error
}

// Factory creates the platform Transport. It is a variable so tests can
// substitute a fake transport without touching the radio.
var Factory = func() (Transport, error) {
	return newPlatformTransport()
}
