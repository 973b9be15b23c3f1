package session

import (
	"net"
	"testing"
	"time"

	"github.com/yat-project/yat/pkg/protocol"
)

func TestReadMessageRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(server, time.Hour)
	defer s.Close()

	msg := make([]byte, protocol.HeaderSize+2)
	protocol.PutHeader(msg, uint16(len(msg)), 7)
	msg[protocol.HeaderSize] = 0xAB
	msg[protocol.HeaderSize+1] = 0xCD

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Write(msg)
		errCh <- err
	}()

	got, err := s.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("client write: %v", err)
	}
	if len(got) != len(msg) {
		t.Fatalf("got %d bytes, want %d", len(got), len(msg))
	}
	if protocol.HeaderID(got) != 7 {
		t.Fatalf("got id %d, want 7", protocol.HeaderID(got))
	}
}

func TestSendMessageWrites(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(server, time.Hour)
	defer s.Close()

	msg := make([]byte, protocol.HeaderSize)
	protocol.PutHeader(msg, uint16(len(msg)), 3)

	done := make(chan struct{})
	go func() {
		s.SendMessage(msg)
		close(done)
	}()

	got, err := protocol.ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	<-done
	if protocol.HeaderID(got) != 3 {
		t.Fatalf("got id %d, want 3", protocol.HeaderID(got))
	}
}

func TestSessionNetworkNameDecodesAndReusesScratchState(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(server, time.Hour)
	defer s.Close()

	if got, want := s.NetworkName([]byte("home-wifi")), "home-wifi"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := s.NetworkName([]byte{0xFF, 0xFE}), protocol.DecodeErrorSentinel; got != want {
		t.Fatalf("got %q, want sentinel %q", got, want)
	}
}

func TestIdleTimerClosesQuietConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(server, 20*time.Millisecond)
	defer s.Close()

	// No traffic at all: the first idle check should close the connection.
	_, err := s.ReadMessage()
	if err == nil {
		t.Fatalf("expected ReadMessage to fail once the idle timer closes the connection")
	}
}

func TestIdleTimerSparedByTraffic(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(server, 30*time.Millisecond)
	defer s.Close()

	msg := make([]byte, protocol.HeaderSize)
	protocol.PutHeader(msg, uint16(len(msg)), 1)

	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				client.Write(msg)
			}
		}
	}()

	for i := 0; i < 3; i++ {
		if _, err := s.ReadMessage(); err != nil {
			close(stop)
			t.Fatalf("ReadMessage %d: %v", i, err)
		}
	}
	close(stop)
}
