package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/hrmon/internal/gatt"
)

// bleTransport adapts a ble.Device to the Transport interface.
type bleTransport struct {
	dev ble.Device
}

// NewBLETransport wraps a go-ble device as a Transport.
func NewBLETransport(dev ble.Device) Transport {
	return &bleTransport{dev: dev}
}

func (t *bleTransport) Scan(ctx context.Context, allowDup bool, h AdvHandler) error {
	return t.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		h(&bleAdvertisement{adv: adv})
	})
}

func (t *bleTransport) Dial(ctx context.Context, addr string) (Client, error) {
	// ble.Dial routes through the default device.
	ble.SetDefaultDevice(t.dev)

	client, err := ble.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", addr, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("discover profile on %q: %w", addr, err)
	}

	return &bleClient{client: client, profile: profile}, nil
}

// bleAdvertisement wraps ble.Advertisement to implement Advertisement.
type bleAdvertisement struct {
	adv ble.Advertisement
}

func (a *bleAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *bleAdvertisement) Addr() string      { return a.adv.Addr().String() }
func (a *bleAdvertisement) RSSI() int         { return a.adv.RSSI() }
func (a *bleAdvertisement) Connectable() bool { return a.adv.Connectable() }

func (a *bleAdvertisement) Services() []string {
	svcs := a.adv.Services()
	result := make([]string, len(svcs))
	for i, svc := range svcs {
		result[i] = svc.String()
	}
	return result
}

// bleClient wraps a live ble.Client plus its discovered profile.
type bleClient struct {
	client  ble.Client
	profile *ble.Profile

	mu     sync.Mutex
	active map[string]*ble.Characteristic // normalized char UUID -> subscribed handle
}

func (c *bleClient) Addr() string { return c.client.Addr().String() }
func (c *bleClient) Name() string { return c.client.Name() }

func (c *bleClient) Disconnected() <-chan struct{} { return c.client.Disconnected() }

func (c *bleClient) CancelConnection() error { return c.client.CancelConnection() }

// findCharacteristic locates a characteristic in the discovered profile.
// UUIDs are compared in normalized form so short and 128-bit spellings match.
func (c *bleClient) findCharacteristic(serviceUUID, charUUID string) (*ble.Characteristic, error) {
	wantSvc := gatt.NormalizeUUID(serviceUUID)
	wantChar := gatt.NormalizeUUID(charUUID)

	for _, svc := range c.profile.Services {
		if gatt.NormalizeUUID(svc.UUID.String()) != wantSvc {
			continue
		}
		for _, char := range svc.Characteristics {
			if gatt.NormalizeUUID(char.UUID.String()) == wantChar {
				return char, nil
			}
		}
		return nil, fmt.Errorf("characteristic %q not found in service %q", charUUID, serviceUUID)
	}
	return nil, fmt.Errorf("service %q not found", serviceUUID)
}

func (c *bleClient) Subscribe(serviceUUID, charUUID string, h func([]byte)) error {
	char, err := c.findCharacteristic(serviceUUID, charUUID)
	if err != nil {
		return err
	}

	if char.Property&(ble.CharNotify|ble.CharIndicate) == 0 {
		return fmt.Errorf("characteristic %q does not support notifications", charUUID)
	}

	if err := c.client.Subscribe(char, false, func(data []byte) {
		h(data)
	}); err != nil {
		return fmt.Errorf("subscribe to %q: %w", charUUID, err)
	}

	c.mu.Lock()
	if c.active == nil {
		c.active = make(map[string]*ble.Characteristic)
	}
	c.active[gatt.NormalizeUUID(charUUID)] = char
	c.mu.Unlock()

	return nil
}

func (c *bleClient) Unsubscribe(serviceUUID, charUUID string) error {
	c.mu.Lock()
	char, ok := c.active[gatt.NormalizeUUID(charUUID)]
	if ok {
		delete(c.active, gatt.NormalizeUUID(charUUID))
	}
	c.mu.Unlock()

	if !ok {
		var err error
		char, err = c.findCharacteristic(serviceUUID, charUUID)
		if err != nil {
			return err
		}
	}

	// Try both delivery modes; the peripheral accepted one of them.
	errNotify := c.client.Unsubscribe(char, false)
	errIndicate := c.client.Unsubscribe(char, true)
	if errNotify != nil && errIndicate != nil {
		return fmt.Errorf("unsubscribe from %q: notify=%v, indicate=%v", charUUID, errNotify, errIndicate)
	}
	return nil
}
