//go:build linux

package device

import (
	"fmt"

	"github.com/go-ble/ble/linux"
)

func newPlatformTransport() (Transport, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("open HCI device: %w", err)
	}
	return NewBLETransport(dev), nil
}
