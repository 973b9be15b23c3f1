// Package deviceid defines the DeviceId type YAT uses to name trackers: a
// UUID split across the wire as two signed 64-bit halves (the most- and
// least-significant bits), matching java.util.UUID's own representation so
// a device registered by the original server and a device registered here
// serialize identically.
package deviceid

import "github.com/google/uuid"

// DeviceId identifies a tracker. The zero value is the nil UUID, used as the
// MonitorLinkReply "miss" sentinel (spec §4.5).
type DeviceId uuid.UUID

// New generates a fresh random (v4) DeviceId, used when a tracker registers.
func New() DeviceId {
	return DeviceId(uuid.New())
}

// FromHalves reconstructs a DeviceId from its two int64 wire halves, as
// carried by RegisterReply, TrackerLinkRequest, MonitorLinkReply, and
// StreamOpenRequest.
func FromHalves(hi, lo int64) DeviceId {
	var id DeviceId
	putUint64(id[0:8], uint64(hi))
	putUint64(id[8:16], uint64(lo))
	return id
}

// Halves returns the DeviceId's two int64 wire halves, most-significant
// first, as java.util.UUID.getMostSignificantBits/getLeastSignificantBits do.
func (d DeviceId) Halves() (hi, lo int64) {
	return int64(getUint64(d[0:8])), int64(getUint64(d[8:16]))
}

// IsZero reports whether d is the nil UUID.
func (d DeviceId) IsZero() bool {
	return d == DeviceId{}
}

// String returns the canonical UUID string form.
func (d DeviceId) String() string {
	return uuid.UUID(d).String()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = (v << 8) | uint64(b[i])
	}
	return v
}
