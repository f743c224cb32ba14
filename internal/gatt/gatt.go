// Package gatt provides UUID normalization helpers and a small table of
// well-known GATT service names for display purposes.
package gatt

import "strings"

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID. A 128-bit UUID of
// the form 0000xxxx-0000-1000-8000-00805f9b34fb is the 16-bit value xxxx.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to a canonical comparison form:
// lowercase, no dashes, no 0x prefix. Full 128-bit UUIDs in the Bluetooth SIG
// base range collapse to their 16-bit short form, so "0000180D-0000-1000-8000-00805F9B34FB",
// "0x180d" and "180d" all normalize identically.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	normalized := make([]string, len(uuids))
	for i, uuid := range uuids {
		normalized[i] = NormalizeUUID(uuid)
	}
	return normalized
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Long UUIDs are cut to their first eight characters; short UUIDs pass through.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// Well-known 16-bit services a heart-rate strap commonly advertises.
// Trimmed to what the monitor displays; not a full SIG database.
var knownServices = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"1814": "Running Speed and Cadence",
	"1816": "Cycling Speed and Cadence",
	"1818": "Cycling Power",
	"fe59": "Nordic DFU",
}

// LookupService returns the assigned name for a service UUID, or "" when the
// UUID is unknown. The input may be in any format NormalizeUUID accepts.
func LookupService(uuid string) string {
	return knownServices[NormalizeUUID(uuid)]
}
