// Package hrs implements the GATT Heart Rate Service profile: the standard
// UUIDs and the Heart Rate Measurement characteristic payload decoder.
package hrs

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Standard Bluetooth SIG assigned numbers for the Heart Rate profile.
const (
	// ServiceUUID is the Heart Rate service (16-bit 0x180D, full 128-bit form).
	ServiceUUID = "0000180d-0000-1000-8000-00805f9b34fb"

	// MeasurementUUID is the Heart Rate Measurement characteristic (0x2A37).
	MeasurementUUID = "00002a37-0000-1000-8000-00805f9b34fb"

	// ShortServiceUUID is the 16-bit short form of the Heart Rate service.
	ShortServiceUUID = "180d"
)

// flagValueFormat16 selects the 16-bit measurement encoding when set in the
// payload flag byte (Heart Rate Measurement, bit 0).
const flagValueFormat16 = 0x01

// Sample is one decoded Heart Rate Measurement notification.
// Immutable once constructed.
type Sample struct {
	BPM        uint16
	ObservedAt time.Time
}

// DecodeError reports a malformed Heart Rate Measurement payload.
type DecodeError struct {
	Reason string
	Len    int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("heart rate measurement: %s (payload length %d)", e.Reason, e.Len)
}

// Decode parses a Heart Rate Measurement notification payload into a Sample
// observed at the given time.
//
// Byte 0 is the flag byte. If bit 0 is clear, byte 1 carries the bpm value as
// an unsigned 8-bit integer; if set, bytes 1-2 carry it as an unsigned
// little-endian 16-bit integer. Trailing fields defined by the profile
// (energy expended, RR-intervals) are ignored; their presence never fails the
// decode. A payload shorter than the width its flag byte demands fails with
// *DecodeError.
func Decode(payload []byte, at time.Time) (Sample, error) {
	if len(payload) < 2 {
		return Sample{}, &DecodeError{Reason: "payload shorter than flag byte plus value", Len: len(payload)}
	}

	flags := payload[0]
	if flags&flagValueFormat16 == 0 {
		return Sample{BPM: uint16(payload[1]), ObservedAt: at}, nil
	}

	if len(payload) < 3 {
		return Sample{}, &DecodeError{Reason: "flag demands 16-bit value but payload carries one data byte", Len: len(payload)}
	}
	return Sample{BPM: binary.LittleEndian.Uint16(payload[1:3]), ObservedAt: at}, nil
}
