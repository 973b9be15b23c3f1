package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileNameFormat(t *testing.T) {
	day := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	if got, want := FileName(day), "tracking-2026-03-05"; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEnqueueWritesInOrder(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	p.Enqueue([]byte("aaa"))
	p.Enqueue([]byte("bbb"))
	p.Enqueue([]byte("ccc"))

	if !p.Close(2 * time.Second) {
		t.Fatalf("Close timed out waiting for drain")
	}

	got, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, []byte("aaabbbccc")) {
		t.Fatalf("file contents = %q, want %q", got, "aaabbbccc")
	}
}

func TestConcurrentEnqueueAllPersisted(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Enqueue([]byte("x"))
		}()
	}
	wg.Wait()

	if !p.Close(5 * time.Second) {
		t.Fatalf("Close timed out waiting for drain")
	}

	got, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != n {
		t.Fatalf("wrote %d bytes, want %d", len(got), n)
	}
}
