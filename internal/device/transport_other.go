//go:build !darwin && !linux

package device

import "fmt"

func newPlatformTransport() (Transport, error) {
	return nil, fmt.Errorf("no BLE transport available on this platform")
}
