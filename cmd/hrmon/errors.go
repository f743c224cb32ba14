package main

import (
	"errors"

	"github.com/srg/hrmon/internal/device"
)

// formatUserError turns transport-layer failures into actionable messages.
// Anything unrecognized is passed through as-is.
func formatUserError(err error) string {
	switch {
	case errors.Is(err, device.ErrScanFailed):
		return err.Error() + "\nCheck that Bluetooth is powered on and the adapter is available."
	case errors.Is(err, device.ErrConnectFailed):
		return err.Error() + "\nMake sure the sensor is worn (most straps only advertise with skin contact) and in range."
	case errors.Is(err, device.ErrSubscribeFailed):
		return err.Error() + "\nThe device may not expose the standard Heart Rate service, or another client holds the subscription."
	default:
		return err.Error()
	}
}
