// Package ratelimit implements the per-source-address request admission
// filter: at most one request from a given address per interval, with a
// one-shot exception for a specific expected follow-up message.
package ratelimit

import (
	"sync"
	"time"
)

// noExpectation means Allow was not told to expect any particular follow-up
// message id. Message id 0 is never assigned to a real YAT message
// (ids start at 1), so it is safe as a sentinel.
const noExpectation uint16 = 0

type entry struct {
	addr                 string
	time                 time.Time
	nextAllowedMessageID uint16
}

// Limiter admits at most one request per address per interval, unless the
// previous request for that address named a specific follow-up message id
// as exempt (the "expected follow-up" exception -- e.g. a RegisterRequest
// implicitly pre-clears the Ping that a tracker sends right after).
//
// Entries expire on a self-rescheduling timer rather than the original
// TimerQueue.Task model: the sweep fires once per interval while any entry
// is pending, and reschedules itself for the remaining time on the oldest
// surviving entry -- never firing more often than necessary.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	byAddr   map[string]*entry
	order    []*entry // insertion order; oldest first
	timer    *time.Timer
}

// New creates a Limiter enforcing interval between requests from the same
// address.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		byAddr:   make(map[string]*entry),
	}
}

// Allow reports whether a request from addr carrying messageID should be
// admitted. If the caller is already expecting some other message right
// after this one (e.g. a Ping following a RegisterRequest), pass it as
// nextAllowedMessageID; that exact message will bypass the interval check
// exactly once. Pass noExpectation's zero value (0) if there is none.
func (l *Limiter) Allow(addr string, messageID, nextAllowedMessageID uint16) bool {
	now := time.Now()

	l.mu.Lock()
	e, ok := l.byAddr[addr]
	var allow, scheduleTimer bool
	if !ok {
		e = &entry{addr: addr, time: now, nextAllowedMessageID: nextAllowedMessageID}
		l.byAddr[addr] = e
		scheduleTimer = len(l.order) == 0
		l.order = append(l.order, e)
		allow = true
	} else if e.nextAllowedMessageID != noExpectation && e.nextAllowedMessageID == messageID {
		e.nextAllowedMessageID = noExpectation
		allow = true
	} else {
		allow = now.Sub(e.time) >= l.interval
	}
	l.mu.Unlock()

	if scheduleTimer {
		l.scheduleSweep(l.interval)
	}
	return allow
}

func (l *Limiter) scheduleSweep(d time.Duration) {
	l.timer = time.AfterFunc(d, l.sweep)
}

// sweep evicts every entry whose interval has fully elapsed, then
// reschedules itself for whatever time remains on the oldest survivor.
// An entry is evicted once now - entry.time >= interval; this is the
// spec's documented eviction rule, not the sign-inverted "time - now"
// comparison in the original source, which would evict every entry on
// the very first sweep tick regardless of how recently it arrived.
func (l *Limiter) sweep() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.order) > 0 {
		e := l.order[0]
		elapsed := now.Sub(e.time)
		if elapsed < l.interval {
			l.timer = time.AfterFunc(l.interval-elapsed, l.sweep)
			return
		}
		delete(l.byAddr, e.addr)
		l.order = l.order[1:]
	}
}

// Stop cancels any pending sweep timer. Safe to call even if no sweep is
// scheduled.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
}
