//go:build darwin

package device

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble/darwin"
)

func newPlatformTransport() (Transport, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		// CoreBluetooth reports power state through central manager errors;
		// surface a clearer message for the common case.
		if strings.Contains(err.Error(), "central manager has invalid state") {
			if strings.Contains(err.Error(), "have=4") { // StatePoweredOff
				return nil, fmt.Errorf("Bluetooth is turned off - please enable Bluetooth and retry")
			}
			return nil, fmt.Errorf("Bluetooth is not ready - %w", err)
		}
		return nil, err
	}
	return NewBLETransport(dev), nil
}
