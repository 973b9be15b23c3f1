// Package linkbroker issues and redeems the numeric link codes a tracker and
// a monitor use to pair: the tracker requests a code, shows it to the user,
// the user enters it into the monitor app, and the monitor redeems it for
// the tracker's DeviceId.
package linkbroker

import (
	"math/rand"
	"sync"
	"time"

	"github.com/yat-project/yat/internal/deviceid"
)

type request struct {
	linkCode  int32
	deviceID  deviceid.DeviceId
	expiresAt time.Time
}

// Broker tracks outstanding link requests. A second TrackerLinkRequest for
// the same device before its first request expires extends the expiry and
// returns the same code, rather than issuing a new one -- matching the
// original server's behavior of treating a repeat request as a keep-alive.
type Broker struct {
	mu       sync.Mutex
	expiry   time.Duration
	rng      *rand.Rand
	byDevice map[deviceid.DeviceId]*request
	timer    *time.Timer
}

// New creates a Broker whose issued codes remain redeemable for expiry.
func New(expiry time.Duration) *Broker {
	return &Broker{
		expiry:   expiry,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		byDevice: make(map[deviceid.DeviceId]*request),
	}
}

// Issue returns the link code for id, generating a fresh one if none is
// currently outstanding, or extending and returning the existing one
// otherwise.
func (b *Broker) Issue(id deviceid.DeviceId) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiresAt := time.Now().Add(b.expiry)
	if r, ok := b.byDevice[id]; ok {
		r.expiresAt = expiresAt
		return r.linkCode
	}

	r := &request{linkCode: b.nextCode(), deviceID: id, expiresAt: expiresAt}
	b.byDevice[id] = r
	if b.timer == nil {
		b.scheduleSweep(b.expiry)
	}
	return r.linkCode
}

func (b *Broker) nextCode() int32 {
	// Matches the original server's range: a non-negative int modulo
	// 100000, redrawn on 0 since 0 is the "device unknown" sentinel and
	// must never be issued as a real code.
	for {
		if code := int32(b.rng.Int31() % 100000); code != 0 {
			return code
		}
	}
}

// Redeem looks up and removes the link request for code, returning its
// device id. The second return value is false if no outstanding request
// carries that code (unknown or already-expired/-redeemed).
func (b *Broker) Redeem(code int32) (deviceid.DeviceId, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for devID, r := range b.byDevice {
		if r.linkCode == code {
			delete(b.byDevice, devID)
			return r.deviceID, true
		}
	}
	return deviceid.DeviceId{}, false
}

func (b *Broker) scheduleSweep(d time.Duration) {
	b.timer = time.AfterFunc(d, b.sweep)
}

// sweep removes every expired request and reschedules itself for whichever
// surviving request expires soonest, exactly as the original server's timer
// task does.
func (b *Broker) sweep() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	var nextExpiry time.Time
	for devID, r := range b.byDevice {
		if !r.expiresAt.After(now) {
			delete(b.byDevice, devID)
			continue
		}
		if nextExpiry.IsZero() || r.expiresAt.Before(nextExpiry) {
			nextExpiry = r.expiresAt
		}
	}

	if nextExpiry.IsZero() {
		b.timer = nil
		return
	}
	b.scheduleSweep(nextExpiry.Sub(now))
}

// Stop cancels any pending sweep timer.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}
