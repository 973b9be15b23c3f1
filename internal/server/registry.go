package server

import (
	"sync"

	"github.com/yat-project/yat/internal/device"
	"github.com/yat-project/yat/internal/deviceid"
)

// registry holds every known DeviceState, keyed by DeviceId, plus the
// reverse mapping from an open subscriber to the single device it is
// subscribed to (I2: a session appears in at most one DeviceState's
// subscriber list at a time). Both maps share one mutex, held only for
// lookups/insertions -- never across network I/O, per the concurrency
// model's server-level-mutex rule.
type registry struct {
	mu sync.Mutex

	devices map[deviceid.DeviceId]*device.State

	// subscriptions tracks, for each currently-subscribed Subscriber, the
	// device it subscribed to, so a connection close can find and remove
	// it without the caller needing to remember which device it opened.
	subscriptions map[device.Subscriber]deviceid.DeviceId
}

func newRegistry() *registry {
	return &registry{
		devices:       make(map[deviceid.DeviceId]*device.State),
		subscriptions: make(map[device.Subscriber]deviceid.DeviceId),
	}
}

// register adds a freshly created device, used by both RegisterRequest and
// startup marker-file replay.
func (r *registry) register(id deviceid.DeviceId, st *device.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[id] = st
}

// lookup returns the device state for id, or nil if unknown.
func (r *registry) lookup(id deviceid.DeviceId) *device.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[id]
}

// count returns the number of registered devices, for startup logging.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// recordSubscription notes that sub now subscribes to id, so a later
// connection close can find and remove it.
func (r *registry) recordSubscription(sub device.Subscriber, id deviceid.DeviceId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[sub] = id
}

// removeSubscription looks up and forgets which device sub was subscribed
// to, returning that device's state (or nil if sub had no subscription).
func (r *registry) removeSubscription(sub device.Subscriber) *device.State {
	r.mu.Lock()
	id, ok := r.subscriptions[sub]
	if ok {
		delete(r.subscriptions, sub)
	}
	dev := r.devices[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return dev
}
