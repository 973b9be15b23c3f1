// Package session wraps one TCP connection: message framing (via
// pkg/protocol) plus the read-idle timer that closes a connection which
// hasn't delivered a complete message in too long.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yat-project/yat/pkg/protocol"
)

// Session is one accepted TCP connection. It satisfies internal/device's
// Subscriber interface, so a *Session can be handed directly to
// device.State.Subscribe.
type Session struct {
	conn        net.Conn
	idleTimeout time.Duration

	bytesReceived atomic.Int64
	lastSeen      atomic.Int64

	timer     *time.Timer
	closeOnce sync.Once

	// netdec is this session's scratch UTF-8 decoder for rendering
	// NetworkName TLV bytes in log lines (spec §3.1/§7). It is
	// thread-unsafe state, private to this one connection, never shared.
	netdec protocol.TextDecoder
}

// New wraps conn and arms the read-idle timer immediately, matching the
// original server arming it at connection-accept time rather than after the
// first message.
func New(conn net.Conn, idleTimeout time.Duration) *Session {
	s := &Session{conn: conn, idleTimeout: idleTimeout}
	s.timer = time.AfterFunc(idleTimeout, s.checkIdle)
	return s
}

// checkIdle closes the connection if no bytes arrived since the last check,
// otherwise re-arms for another idleTimeout -- the same snapshot-and-compare
// rule as the original TimerHandler.run().
func (s *Session) checkIdle() {
	current := s.bytesReceived.Load()
	last := s.lastSeen.Swap(current)
	if current == last {
		s.Close()
		return
	}
	s.timer.Reset(s.idleTimeout)
}

// ReadMessage reads one complete header-framed message, counting its bytes
// toward the idle timer.
func (s *Session) ReadMessage() ([]byte, error) {
	msg, err := protocol.ReadMessage(s.conn)
	if err != nil {
		return nil, err
	}
	s.bytesReceived.Add(int64(len(msg)))
	return msg, nil
}

// SendMessage writes msg to the connection, satisfying device.Subscriber.
// Write errors are not reported to the caller (fire-and-forget fan-out,
// matching the original server's sendData semantics); a broken connection
// will simply fail its next read and get cleaned up there.
func (s *Session) SendMessage(msg []byte) {
	_ = protocol.WriteMessage(s.conn, msg)
}

// NetworkName decodes a NetworkName TLV's raw bytes for logging, reusing
// this session's scratch decoder. The raw bytes themselves are stored
// unconditionally elsewhere (spec §7 DecodeError) -- this is for the log
// line only.
func (s *Session) NetworkName(raw []byte) string {
	return s.netdec.Decode(raw)
}

// RemoteAddr returns the connection's remote address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close stops the idle timer and closes the underlying connection. Safe to
// call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.timer.Stop()
		err = s.conn.Close()
	})
	return err
}

// String returns the remote address, for logging.
func (s *Session) String() string {
	return s.conn.RemoteAddr().String()
}
