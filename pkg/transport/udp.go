package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/yat-project/yat/pkg/protocol"
)

// maxUDPPayload is large enough for any message the size field can declare
// (protocol.MaxMessageSize) plus headroom; real UDP datagrams never approach
// this, but recvfrom needs a buffer big enough not to truncate one.
const maxUDPPayload = 65507

var (
	ErrMessageTooLarge    = errors.New("yat udp: message exceeds maximum UDP payload")
	ErrTransportClosed    = errors.New("yat udp: transport is closed")
	ErrDatagramSizeMismatch = errors.New("yat udp: header size does not match datagram length")
)

// UDPTransport sends and receives YAT messages as whole UDP datagrams: the
// 4-byte common header (pkg/protocol) is the only framing needed, since each
// datagram boundary already delimits one message. Recv validates that the
// header's declared size equals the number of bytes actually received --
// a mismatch means a truncated, padded, or corrupt datagram and is rejected
// outright rather than repaired.
type UDPTransport struct {
	conn   *net.UDPConn
	mu     sync.Mutex
	closed bool
}

// ListenUDP creates a listening UDP transport bound to addr.
func ListenUDP(addr string) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("yat udp: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("yat udp: listen %s: %w", addr, err)
	}
	return &UDPTransport{conn: conn}, nil
}

// Send transmits a single already-framed YAT message to addr.
func (t *UDPTransport) Send(ctx context.Context, addr Addr, msg []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	if len(msg) > maxUDPPayload {
		return ErrMessageTooLarge
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("yat udp: addr is not a *net.UDPAddr: %T", addr)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}

	_, err := t.conn.WriteToUDP(msg, udpAddr)
	return err
}

// Recv blocks until a complete, validated YAT datagram arrives.
func (t *UDPTransport) Recv(ctx context.Context) ([]byte, Addr, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, nil, ErrTransportClosed
	}
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	buf := make([]byte, maxUDPPayload)

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, err
		}
	}

	// Unblock ReadFromUDP promptly on context cancellation by forcing an
	// expired read deadline; the goroutine exits once the read returns.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.conn.SetReadDeadline(time.Now())
		case <-readDone:
		}
	}()

	n, remoteAddr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	if n < protocol.HeaderSize {
		return nil, nil, fmt.Errorf("yat udp: datagram too short (%d bytes)", n)
	}

	declared := int(protocol.HeaderSizeField(buf[:n]))
	if declared != n {
		return nil, nil, ErrDatagramSizeMismatch
	}

	msg := make([]byte, n)
	copy(msg, buf[:n])
	return msg, remoteAddr, nil
}

// Close shuts down the transport.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// LocalAddr returns the local network address of the underlying socket.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}
