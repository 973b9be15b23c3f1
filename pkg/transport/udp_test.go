package transport

import (
	"context"
	"testing"
	"time"

	"github.com/yat-project/yat/pkg/protocol"
)

func TestUDPSendRecvRoundTrip(t *testing.T) {
	server, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP server: %v", err)
	}
	defer server.Close()

	client, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP client: %v", err)
	}
	defer client.Close()

	msg := protocol.EncodePing()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Send(ctx, server.LocalAddr(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, from, err := server.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if protocol.HeaderID(got) != protocol.IDPing {
		t.Fatalf("id = %d, want IDPing", protocol.HeaderID(got))
	}
	if from == nil {
		t.Fatalf("from address is nil")
	}
}

func TestUDPRecvRejectsSizeMismatch(t *testing.T) {
	server, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP server: %v", err)
	}
	defer server.Close()

	client, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP client: %v", err)
	}
	defer client.Close()

	// A Ping header that falsely claims a larger size than the datagram
	// actually carries.
	bad := protocol.EncodePing()
	protocol.PutHeader(bad, protocol.PingSize+10, protocol.IDPing)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Send(ctx, server.LocalAddr(), bad); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, _, err = server.Recv(ctx)
	if err != ErrDatagramSizeMismatch {
		t.Fatalf("err = %v, want ErrDatagramSizeMismatch", err)
	}
}

func TestUDPRecvContextCancellation(t *testing.T) {
	server, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := server.Recv(ctx); err == nil {
		t.Fatalf("expected error from Recv with an already-cancelled context")
	}
}
