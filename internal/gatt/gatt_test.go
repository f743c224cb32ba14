package gatt_test

import (
	"testing"

	"github.com/srg/hrmon/internal/gatt"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short lowercase", "180d", "180d"},
		{"short uppercase", "180D", "180d"},
		{"0x prefix", "0x2902", "2902"},
		{"full SIG base collapses to short form", "0000180d-0000-1000-8000-00805f9b34fb", "180d"},
		{"full SIG base uppercase", "0000180D-0000-1000-8000-00805F9B34FB", "180d"},
		{"vendor 128-bit UUID keeps full form", "6e400001-b5a3-f393-e0a9-e50e24dcca9e", "6e400001b5a3f393e0a9e50e24dcca9e"},
		{"already normalized", "00002a3700001000800000805f9b34fb", "2a37"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gatt.NormalizeUUID(tt.in))
		})
	}
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "180d", gatt.ShortenUUID("180d"))
	assert.Equal(t, "6e400001", gatt.ShortenUUID("6e400001b5a3f393e0a9e50e24dcca9e"))
}

func TestLookupService(t *testing.T) {
	assert.Equal(t, "Heart Rate", gatt.LookupService("180d"))
	assert.Equal(t, "Heart Rate", gatt.LookupService("0000180D-0000-1000-8000-00805F9B34FB"))
	assert.Equal(t, "Battery Service", gatt.LookupService("180f"))
	assert.Empty(t, gatt.LookupService("ffff"))
}
