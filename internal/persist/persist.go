// Package persist appends every accepted Tracking message to a single
// append-only file, off the hot path: the goroutine that receives a message
// enqueues it and returns immediately, and whichever goroutine finds the
// queue empty starts the one goroutine that drains it to disk.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const filePrefix = "tracking"

type item struct {
	next atomic.Pointer[item]
	data []byte
}

// Pipeline is a single-consumer-at-a-time, lock-free FIFO queue backed by a
// CAS-linked list (sync/atomic.Pointer), draining into one append-only file.
// This is the Go shape of the original server's AtomicReference<ListItem>
// tail plus a single mutable head only the current drainer touches: the
// goroutine that transitions the tail from nil to non-nil starts the drain
// loop in a new goroutine; every other enqueuer just links itself onto the
// existing tail and returns.
type Pipeline struct {
	tail atomic.Pointer[item]
	head *item // owned exclusively by whichever goroutine is draining

	file *os.File
	wg   sync.WaitGroup
}

// FileName returns the append-only file name for the given day, matching
// the original server's "tracking-YYYY-MM-DD" naming.
func FileName(day time.Time) string {
	return fmt.Sprintf("%s-%04d-%02d-%02d", filePrefix, day.Year(), int(day.Month()), day.Day())
}

// Open opens (creating if necessary) today's append-only file under dir.
func Open(dir string, day time.Time) (*Pipeline, error) {
	path := filepath.Join(dir, FileName(day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("yat persist: open %s: %w", path, err)
	}
	return &Pipeline{file: f}, nil
}

// Enqueue appends data (expected to be one complete header-framed message)
// to the pipeline. It never blocks on disk I/O.
func (p *Pipeline) Enqueue(data []byte) {
	it := &item{data: data}
	prev := p.tail.Swap(it)
	if prev == nil {
		p.head = it
		p.wg.Add(1)
		go p.drain()
		return
	}
	prev.next.Store(it)
}

// drain writes queued items to the file in order until the queue is empty,
// then races the CAS that hands the tail back to nil: if another Enqueue
// beat it to appending, it spins briefly for that item's next pointer to
// become visible rather than giving up the drain early.
func (p *Pipeline) drain() {
	defer p.wg.Done()
	it := p.head
	for {
		if _, err := p.file.Write(it.data); err != nil {
			fmt.Fprintf(os.Stderr, "yat persist: write: %v\n", err)
		}

		next := it.next.Load()
		if next == nil {
			if err := p.file.Sync(); err != nil {
				fmt.Fprintf(os.Stderr, "yat persist: sync: %v\n", err)
			}
			p.head = nil
			if p.tail.CompareAndSwap(it, nil) {
				return
			}
			for next = it.next.Load(); next == nil; next = it.next.Load() {
				// Another goroutine has already linked its item onto it
				// (the CAS above lost the race) but hasn't finished the
				// Store yet; this is a narrow, bounded window.
			}
		}
		it = next
	}
}

// Close waits up to timeout for any in-flight drain to finish, then closes
// the underlying file. Returns false if the timeout elapsed first.
func (p *Pipeline) Close(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	drained := true
	select {
	case <-done:
	case <-time.After(timeout):
		drained = false
	}

	if err := p.file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "yat persist: close: %v\n", err)
	}
	return drained
}
