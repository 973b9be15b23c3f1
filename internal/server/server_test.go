package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yat-project/yat/internal/config"
	"github.com/yat-project/yat/internal/deviceid"
	"github.com/yat-project/yat/pkg/protocol"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New(dir)
	cfg.Port = 0
	cfg.RateLimitInterval = time.Millisecond
	cfg.ShutdownFlushTimeout = 2 * time.Second

	srv := New(cfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv
}

func dialTCP(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial tcp: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func registerDevice(t *testing.T, srv *Server) deviceid.DeviceId {
	t.Helper()
	conn := dialTCP(t, srv)
	if err := protocol.WriteMessage(conn, protocol.EncodeRegisterRequest()); err != nil {
		t.Fatalf("write register request: %v", err)
	}
	reply, err := protocol.ReadMessage(conn)
	if err != nil {
		t.Fatalf("read register reply: %v", err)
	}
	if protocol.HeaderID(reply) != protocol.IDRegisterReply {
		t.Fatalf("got id %d, want RegisterReply", protocol.HeaderID(reply))
	}
	did1, did2 := protocol.RegisterReplyDeviceID(reply)
	return deviceid.FromHalves(did1, did2)
}

func TestRegisterCreatesMarkerFileAndReplies(t *testing.T) {
	srv := startTestServer(t)
	id := registerDevice(t, srv)

	markerPath := filepath.Join(srv.cfg.StoragePath, id.String())
	if _, err := os.Stat(markerPath); err != nil {
		t.Fatalf("marker file missing: %v", err)
	}
}

func TestLinkCeremony(t *testing.T) {
	srv := startTestServer(t)
	id := registerDevice(t, srv)

	trackerConn := dialTCP(t, srv)
	did1, did2 := id.Halves()
	if err := protocol.WriteMessage(trackerConn, protocol.EncodeTrackerLinkRequest(did1, did2)); err != nil {
		t.Fatalf("write tracker link request: %v", err)
	}
	reply, err := protocol.ReadMessage(trackerConn)
	if err != nil {
		t.Fatalf("read tracker link reply: %v", err)
	}
	if protocol.HeaderID(reply) != protocol.IDTrackerLinkReply {
		t.Fatalf("got id %d, want TrackerLinkReply", protocol.HeaderID(reply))
	}
	code := protocol.TrackerLinkReplyLinkCode(reply)
	if code == 0 {
		t.Fatalf("expected a nonzero link code")
	}

	monitorConn := dialTCP(t, srv)
	if err := protocol.WriteMessage(monitorConn, protocol.EncodeMonitorLinkRequest(code)); err != nil {
		t.Fatalf("write monitor link request: %v", err)
	}
	monReply, err := protocol.ReadMessage(monitorConn)
	if err != nil {
		t.Fatalf("read monitor link reply: %v", err)
	}
	if protocol.HeaderID(monReply) != protocol.IDMonitorLinkReply {
		t.Fatalf("got id %d, want MonitorLinkReply", protocol.HeaderID(monReply))
	}
	gotDid1, gotDid2 := protocol.MonitorLinkReplyDeviceID(monReply)
	if gotDid1 != did1 || gotDid2 != did2 {
		t.Fatalf("resolved device id mismatch")
	}

	if err := protocol.WriteMessage(monitorConn, protocol.EncodeStreamOpenRequest(did1, did2)); err != nil {
		t.Fatalf("write stream open request: %v", err)
	}
	snapshot, err := protocol.ReadMessage(monitorConn)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if protocol.HeaderID(snapshot) != protocol.IDTracking {
		t.Fatalf("got id %d, want Tracking snapshot", protocol.HeaderID(snapshot))
	}
}

func TestUDPTrackingOutOfOrderThenResync(t *testing.T) {
	srv := startTestServer(t)
	id := registerDevice(t, srv)
	did1, did2 := id.Halves()

	udpAddr := "127.0.0.1:" + portOf(t, srv.UDPAddr())
	udpConn, err := net.Dial("udp", udpAddr)
	if err != nil {
		t.Fatalf("dial udp: %v", err)
	}
	defer udpConn.Close()

	msg8 := protocol.EncodeTrackingT2S(did1, did2, 8, trackingLocationTLV(t, 50))
	msg7 := protocol.EncodeTrackingT2S(did1, did2, 7, trackingLocationTLV(t, 100))
	if _, err := udpConn.Write(msg8); err != nil {
		t.Fatalf("write udp msg8: %v", err)
	}
	if _, err := udpConn.Write(msg7); err != nil {
		t.Fatalf("write udp msg7: %v", err)
	}

	conn := dialTCP(t, srv)
	var reply []byte
	for attempt := 0; attempt < 50; attempt++ {
		req, err := protocol.EncodeResyncRequest(did1, did2, []uint64{6, 7, 8})
		if err != nil {
			t.Fatalf("encode resync request: %v", err)
		}
		if err := protocol.WriteMessage(conn, req); err != nil {
			t.Fatalf("write resync request: %v", err)
		}
		reply, err = protocol.ReadMessage(conn)
		if err != nil {
			t.Fatalf("read resync reply: %v", err)
		}
		nAck, _ := protocol.ResyncReplyCounts(reply)
		if nAck == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ack, req := protocol.DecodeResyncReply(reply)
	if len(ack) != 2 || len(req) != 1 {
		t.Fatalf("ack=%v req=%v, want 2 acked and 1 requested", ack, req)
	}
	if req[0] != 6 {
		t.Fatalf("requested sequence numbers = %v, want [6]", req)
	}
}

func TestResyncRequestForUnknownDeviceIsDropped(t *testing.T) {
	srv := startTestServer(t)
	conn := dialTCP(t, srv)

	req, err := protocol.EncodeResyncRequest(1, 2, []uint64{1, 2, 3})
	if err != nil {
		t.Fatalf("encode resync request: %v", err)
	}
	if err := protocol.WriteMessage(conn, req); err != nil {
		t.Fatalf("write resync request: %v", err)
	}

	// If the server had replied to the unknown-device resync request
	// instead of dropping it, this read would see the resync reply rather
	// than timing out on a quiet connection.
	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := protocol.ReadMessage(conn); err == nil {
		t.Fatalf("expected no reply for a resync request naming an unknown device")
	}
}

func portOf(t *testing.T, addr net.Addr) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	return port
}

func trackingLocationTLV(t *testing.T, at int64) []byte {
	t.Helper()
	var b protocol.TLVBuilder
	b.PutLocation(at, 1.0, 2.0, 3.0)
	return b.Bytes()
}
