// Package scoring classifies and filters scan results: a vendor hint derived
// from the address prefix, a Heart Rate service check, and the RSSI filter
// plus ordering the device picker applies.
package scoring

import (
	"sort"
	"strings"

	"github.com/srg/hrmon/internal/gatt"
	"github.com/srg/hrmon/internal/hrs"
	"github.com/srg/hrmon/scanner"
)

// UnknownVendor is the hint for addresses outside the prefix tables.
const UnknownVendor = "Unknown"

// Vendor prefix tables keyed by the first one or two octets of the hardware
// address. Prefix ranges overlap across manufacturers and firmware revisions,
// so a match is an advisory display hint, never an identification.
var twoOctetVendors = map[string]string{
	"14:13": "Garmin",
	"90:F1": "Garmin",
	"A0:9E": "Polar",
	"C8:5C": "Polar",
	"F8:8C": "Wahoo",
	"EE:91": "Thinkrider",
	"DC:62": "TP-Link",
	"E4:5F": "Realtek",
	"00:E0": "Realtek",
	"3C:58": "Intel",
}

var oneOctetVendors = map[string]string{
	"D4": "Coospo",
	"C4": "Magene",
}

// DeviceScore is a derived view over one advertisement record. It is
// recomputed on demand and never cached across scans.
type DeviceScore struct {
	Hint                string
	HasHeartRateService bool
}

// Score classifies a record. The two-octet table wins over the one-octet one.
func Score(rec scanner.AdvertisementRecord) DeviceScore {
	return DeviceScore{
		Hint:                vendorHint(rec.Address),
		HasHeartRateService: HasHeartRateService(rec.ServiceUUIDs),
	}
}

// HasHeartRateService reports whether the advertised service set contains the
// standard Heart Rate service, in short or 128-bit form, case-insensitively.
func HasHeartRateService(serviceUUIDs []string) bool {
	for _, uuid := range serviceUUIDs {
		if gatt.NormalizeUUID(uuid) == hrs.ShortServiceUUID {
			return true
		}
	}
	return false
}

func vendorHint(address string) string {
	addr := strings.ToUpper(address)
	if len(addr) >= 5 {
		if vendor, ok := twoOctetVendors[addr[:5]]; ok {
			return vendor
		}
	}
	if len(addr) >= 2 {
		if vendor, ok := oneOctetVendors[addr[:2]]; ok {
			return vendor
		}
	}
	return UnknownVendor
}

// FilterOptions is the retention contract the device picker applies.
type FilterOptions struct {
	// MinRSSI is the weakest acceptable signal in dBm.
	MinRSSI int

	// HeartRateOnly retains only devices advertising the Heart Rate service.
	HeartRateOnly bool
}

// Filter retains records with RSSI at or above the threshold and, when
// HeartRateOnly is set, an advertised Heart Rate service. Retained records
// are ordered by RSSI descending; equal RSSI preserves input order. The input
// slice is not modified, and filtering the same input with the same options
// always yields the same ordered result.
func Filter(records []scanner.AdvertisementRecord, opts FilterOptions) []scanner.AdvertisementRecord {
	retained := make([]scanner.AdvertisementRecord, 0, len(records))
	for _, rec := range records {
		if rec.RSSI < opts.MinRSSI {
			continue
		}
		if opts.HeartRateOnly && !HasHeartRateService(rec.ServiceUUIDs) {
			continue
		}
		retained = append(retained, rec)
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].RSSI > retained[j].RSSI
	})
	return retained
}
