// Package device holds per-tracker fusion state: the last-known battery
// level, network name, and location, reconciled from a stream of Tracking
// messages that can arrive out of order (resync can replay old ones), plus
// the set of monitor subscribers currently watching this device.
package device

import (
	"sync"

	"github.com/yat-project/yat/pkg/protocol"
)

// Subscriber is anything that can receive a server-to-monitor Tracking
// message: a live TCP session. Kept as a minimal interface so this package
// never needs to import net or the session package.
type Subscriber interface {
	SendMessage(msg []byte)
}

type locationInfo struct {
	lat, lon, alt float64
}

// State is one tracker's fused view of its own reported state, plus the
// monitors subscribed to it.
type State struct {
	mu sync.Mutex

	subscribers []Subscriber
	receivedSNs map[uint64]struct{}

	batteryTime  int64
	batteryLevel int16

	networkNameTime int64
	networkName     []byte

	locations       map[int64]locationInfo
	maxLocationTime int64

	trackingStoppedTime int64

	addrMu   sync.Mutex
	lastAddr string // diagnostic only: last source address seen for this device
}

// New returns an empty device state, as created when a device registers or
// when a startup scan finds its marker file.
func New() *State {
	return &State{
		receivedSNs: make(map[uint64]struct{}),
		locations:   make(map[int64]locationInfo),
	}
}

// SetLastAddr records the source address of the most recently received
// message. Guarded by its own mutex, separate from the fusion critical
// section below, since it is diagnostic (used only for logging) and
// doesn't need to be consistent with the fields it's recorded alongside.
func (s *State) SetLastAddr(addr string) {
	s.addrMu.Lock()
	s.lastAddr = addr
	s.addrMu.Unlock()
}

// LastAddr returns the most recently recorded source address, or "" if none.
func (s *State) LastAddr() string {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.lastAddr
}

// Subscribe adds sub to the device's subscriber list and returns a
// server-to-monitor Tracking snapshot of every field currently set (spec:
// "send a server-to-monitor Tracking snapshot that includes any set fields
// ... and at most the most recent location"). Subscribing the same
// Subscriber twice is a no-op -- re-delivering StreamOpenRequest on an
// already-open stream must not duplicate fan-out.
func (s *State) Subscribe(sub Subscriber) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscribers {
		if existing == sub {
			return nil
		}
	}
	s.subscribers = append(s.subscribers, sub)

	var b protocol.TLVBuilder
	if s.batteryTime != 0 {
		b.PutBattery(s.batteryTime, s.batteryLevel)
	}
	if s.networkNameTime != 0 {
		b.PutNetwork(s.networkNameTime, s.networkName)
	}
	if len(s.locations) > 0 {
		loc := s.locations[s.maxLocationTime]
		b.PutLocation(s.maxLocationTime, loc.lat, loc.lon, loc.alt)
	}
	if s.trackingStoppedTime != 0 {
		b.PutTrackingStopped(s.trackingStoppedTime)
	}
	return protocol.EncodeTrackingS2M(b.Bytes())
}

// Unsubscribe removes sub from the device's subscriber list, called when its
// TCP session closes.
func (s *State) Unsubscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.subscribers {
		if existing == sub {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// ApplyTracking folds the TLV fields from a tracker-to-server Tracking
// message into the device's fused state, records sn as received (for later
// resync acking), and returns the server-to-monitor Tracking message to fan
// out to current subscribers plus the list to send it to -- or a nil
// message if nothing changed or there are no subscribers.
func (s *State) ApplyTracking(sn uint64, fields protocol.TrackingFields) ([]byte, []Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receivedSNs[sn] = struct{}{}

	var b protocol.TLVBuilder
	changed := false

	if bf := fields.Battery; bf != nil && bf.Time > s.batteryTime {
		s.batteryTime = bf.Time
		s.batteryLevel = bf.Level
		s.clearTrackingStoppedIfStale(bf.Time)
		if len(s.subscribers) > 0 {
			b.PutBattery(bf.Time, bf.Level)
			changed = true
		}
	}

	if nf := fields.Network; nf != nil && nf.Time > s.networkNameTime {
		s.networkNameTime = nf.Time
		s.networkName = nf.Name
		s.clearTrackingStoppedIfStale(nf.Time)
		if len(s.subscribers) > 0 {
			b.PutNetwork(nf.Time, nf.Name)
			changed = true
		}
	}

	for _, loc := range fields.Locations {
		_, existed := s.locations[loc.Time]
		s.locations[loc.Time] = locationInfo{lat: loc.Lat, lon: loc.Lon, alt: loc.Alt}
		if loc.Time > s.maxLocationTime {
			s.maxLocationTime = loc.Time
		}
		s.clearTrackingStoppedIfStale(loc.Time)
		if !existed && len(s.subscribers) > 0 {
			b.PutLocation(loc.Time, loc.Lat, loc.Lon, loc.Alt)
			changed = true
		}
	}

	if tsf := fields.TrackingStopped; tsf != nil {
		lastLocationTime, haveLocation := s.maxLocationTime, len(s.locations) > 0
		if tsf.Time > s.trackingStoppedTime &&
			tsf.Time > s.batteryTime &&
			tsf.Time > s.networkNameTime &&
			haveLocation && tsf.Time > lastLocationTime {
			s.trackingStoppedTime = tsf.Time
			if len(s.subscribers) > 0 {
				b.PutTrackingStopped(tsf.Time)
				changed = true
			}
		}
	}

	if !changed {
		return nil, nil
	}
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	return protocol.EncodeTrackingS2M(b.Bytes()), subs
}

// clearTrackingStoppedIfStale implements the shared trackingStopped-clear
// rule: any later battery/network/location activity than the recorded stop
// time clears the stop, since it proves the device kept reporting after it.
// Must be called with s.mu held.
func (s *State) clearTrackingStoppedIfStale(t int64) {
	if s.trackingStoppedTime != 0 && s.trackingStoppedTime < t {
		s.trackingStoppedTime = 0
	}
}

// Received reports whether sequence number sn has ever been applied to this
// device, used to build ResyncReply's ack/request partition.
func (s *State) Received(sn uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.receivedSNs[sn]
	return ok
}

// PartitionResync splits sns into the sequence numbers already received
// (ack) and those still missing (request), preserving order in each
// partition, as ResyncReply's two lists require.
func (s *State) PartitionResync(sns []uint64) (ack, req []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sn := range sns {
		if _, ok := s.receivedSNs[sn]; ok {
			ack = append(ack, sn)
		} else {
			req = append(req, sn)
		}
	}
	return ack, req
}
