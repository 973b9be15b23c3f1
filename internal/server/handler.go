package server

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/yat-project/yat/internal/device"
	"github.com/yat-project/yat/internal/deviceid"
	"github.com/yat-project/yat/internal/session"
	"github.com/yat-project/yat/pkg/protocol"
	"github.com/yat-project/yat/pkg/transport"
)

// dispatchTCP decodes and handles one message read from a TCP session,
// implementing spec §4.6's dispatch table. It returns false if the session
// should be closed (either because the message's own post-action is
// "close connection after reply", or because the message is malformed or
// unrecognized).
func (s *Server) dispatchTCP(sess *session.Session, remoteAddr string, msg []byte) bool {
	if len(msg) < protocol.HeaderSize {
		log.Printf("yat server: %s: short message", remoteAddr)
		return false
	}
	id := protocol.HeaderID(msg)

	switch id {
	case protocol.IDPing:
		// No rate limit, no reply, connection stays open.
		return true

	case protocol.IDRegisterRequest:
		if !s.limiter.Allow(remoteAddr, id, protocol.IDPing) {
			return true
		}
		s.handleRegisterRequest(sess)
		return false

	case protocol.IDTrackerLinkRequest:
		if !s.limiter.Allow(remoteAddr, id, protocol.IDPing) {
			return true
		}
		if len(msg) < protocol.TrackerLinkRequestSize {
			return false
		}
		s.handleTrackerLinkRequest(sess, msg)
		return false

	case protocol.IDMonitorLinkRequest:
		if !s.limiter.Allow(remoteAddr, id, protocol.IDStreamOpenRequest) {
			return true
		}
		if len(msg) < protocol.MonitorLinkRequestSize {
			return false
		}
		s.handleMonitorLinkRequest(sess, msg)
		return true

	case protocol.IDStreamOpenRequest:
		if !s.limiter.Allow(remoteAddr, id, protocol.IDPing) {
			return true
		}
		if len(msg) < protocol.StreamOpenRequestSize {
			return false
		}
		s.handleStreamOpenRequest(sess, msg)
		return true

	case protocol.IDResyncRequest:
		return s.handleResyncRequest(sess, msg)

	case protocol.IDTracking:
		if len(msg) < trackingT2SMinSize {
			return false
		}
		s.handleTracking(sess, msg, remoteAddr)
		return true

	default:
		log.Printf("yat server: %s: unhandled message id %d", remoteAddr, id)
		return false
	}
}

const trackingT2SMinSize = protocol.HeaderSize + 16 + 8

// dispatchUDP handles one validated datagram from the UDP listener. Only
// Tracking is a valid message over UDP; anything else is logged and
// dropped, matching java:Server.java's DatagramListenerImpl.
func (s *Server) dispatchUDP(msg []byte, from transport.Addr) {
	id := protocol.HeaderID(msg)
	if id != protocol.IDTracking {
		log.Printf("yat server: unexpected message id %d from udp %s", id, from)
		return
	}
	if len(msg) < trackingT2SMinSize {
		return
	}

	did1, did2 := protocol.TrackingT2SDeviceID(msg)
	devID := deviceid.FromHalves(did1, did2)
	dev := s.registry.lookup(devID)
	if dev == nil {
		log.Printf("yat server: unknown device %s from udp %s", devID, from)
		return
	}
	dev.SetLastAddr(from.String())

	s.handleTracking(nil, msg, from.String())
}

// handleRegisterRequest creates a fresh DeviceId, an empty marker file
// named by its canonical form, and an empty DeviceState, then replies and
// closes -- trackers never hold a long-lived connection open for requests.
func (s *Server) handleRegisterRequest(sess *session.Session) {
	id := deviceid.New()
	markerPath := filepath.Join(s.cfg.StoragePath, id.String())
	f, err := os.OpenFile(markerPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("yat server: create marker file for %s: %v", id, err)
		return
	}
	f.Close()

	s.registry.register(id, device.New())

	did1, did2 := id.Halves()
	sess.SendMessage(protocol.EncodeRegisterReply(did1, did2))
}

// handleTrackerLinkRequest issues (or refreshes) a link code for the
// requesting device, or 0 if the device is unknown.
func (s *Server) handleTrackerLinkRequest(sess *session.Session, msg []byte) {
	did1, did2 := protocol.TrackerLinkRequestDeviceID(msg)
	id := deviceid.FromHalves(did1, did2)

	var code int32
	if s.registry.lookup(id) != nil {
		code = s.broker.Issue(id)
	}
	sess.SendMessage(protocol.EncodeTrackerLinkReply(code))
}

// handleMonitorLinkRequest redeems a link code for its device id, replying
// with zeros on a miss (spec §7: InvalidLinkCode never errors).
func (s *Server) handleMonitorLinkRequest(sess *session.Session, msg []byte) {
	code := protocol.MonitorLinkRequestLinkCode(msg)
	id, ok := s.broker.Redeem(code)
	if !ok {
		sess.SendMessage(protocol.EncodeMonitorLinkReply(0, 0))
		return
	}
	did1, did2 := id.Halves()
	sess.SendMessage(protocol.EncodeMonitorLinkReply(did1, did2))
}

// handleStreamOpenRequest subscribes sess to the named device, replacing any
// subscription sess held to another device, and sends a snapshot of its
// current fused state. An unknown device is logged and otherwise dropped --
// there is no StreamOpenReply in the message catalog to report the failure on.
func (s *Server) handleStreamOpenRequest(sess *session.Session, msg []byte) {
	did1, did2 := protocol.StreamOpenRequestDeviceID(msg)
	id := deviceid.FromHalves(did1, did2)

	dev := s.registry.lookup(id)
	if dev == nil {
		log.Printf("yat server: stream open for unknown device %s", id)
		return
	}
	if prev := s.registry.removeSubscription(sess); prev != nil && prev != dev {
		prev.Unsubscribe(sess)
	}
	s.registry.recordSubscription(sess, id)
	if snapshot := dev.Subscribe(sess); snapshot != nil {
		sess.SendMessage(snapshot)
	}
}

// handleResyncRequest validates that the declared count agrees with the
// message's actual size (spec §4.3/§7 FramingError), partitions the named
// sequence numbers against the device's received set, and replies. It
// returns false if the message is malformed and the connection should be
// closed.
func (s *Server) handleResyncRequest(sess *session.Session, msg []byte) bool {
	n, err := protocol.ValidateResyncRequest(msg)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrShortMessage):
			log.Printf("yat server: resync request too short")
		case errors.Is(err, protocol.ErrResyncSizeMismatch):
			log.Printf("yat server: resync request size mismatch")
		}
		return false
	}

	did1, did2 := protocol.ResyncRequestDeviceID(msg)
	id := deviceid.FromHalves(did1, did2)

	dev := s.registry.lookup(id)
	if dev == nil {
		// UnknownDeviceId: drop with no reply, matching
		// java:Server.java's handleResyncRequest.
		log.Printf("yat server: resync request for unknown device %s", id)
		return true
	}

	sns := protocol.DecodeSequenceNumbers(msg, n)
	ack, req := dev.PartitionResync(sns)
	sess.SendMessage(protocol.EncodeResyncReply(ack, req))
	return true
}

// handleTracking fuses a tracker-to-server Tracking message into its
// device's state, fans the resulting server-to-monitor Tracking message out
// to current subscribers, and enqueues the raw message for persistence.
// Shared by both the TCP and UDP dispatch paths; sess is nil for UDP, since
// a datagram carries no per-connection scratch state to decode a NetworkName
// field's log string with.
func (s *Server) handleTracking(sess *session.Session, msg []byte, remoteAddr string) {
	did1, did2 := protocol.TrackingT2SDeviceID(msg)
	id := deviceid.FromHalves(did1, did2)

	dev := s.registry.lookup(id)
	if dev == nil {
		log.Printf("yat server: %s: tracking for unknown device %s", remoteAddr, id)
		return
	}

	sn := uint64(protocol.TrackingT2SSequenceNumber(msg))
	fields, err := protocol.ParseTLVs(protocol.TrackingT2STLVs(msg))
	switch {
	case errors.Is(err, protocol.ErrTLVOverrun):
		log.Printf("yat server: %s: tracking TLV overrun, dropping trailing fields", remoteAddr)
	case errors.Is(err, protocol.ErrInvalidTLVLength):
		log.Printf("yat server: %s: %d broken tracking fields", remoteAddr, fields.BrokenFields)
	}
	if fields.Network != nil && sess != nil {
		log.Printf("yat server: %s: network name %q", remoteAddr, sess.NetworkName(fields.Network.Name))
	}

	s.persist.Enqueue(msg)

	update, subs := dev.ApplyTracking(sn, fields)
	for _, sub := range subs {
		sub.SendMessage(update)
	}
}
