package protocol

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	buf := EncodePing()
	if HeaderSizeField(buf) != PingSize {
		t.Fatalf("size field = %d, want %d", HeaderSizeField(buf), PingSize)
	}
	if HeaderID(buf) != IDPing {
		t.Fatalf("id field = %d, want %d", HeaderID(buf), IDPing)
	}
}

func TestRegisterReplyRoundTrip(t *testing.T) {
	buf := EncodeRegisterReply(0x1122334455667788, -42)
	if len(buf) != RegisterReplySize {
		t.Fatalf("len = %d, want %d", len(buf), RegisterReplySize)
	}
	if HeaderID(buf) != IDRegisterReply {
		t.Fatalf("id = %d, want IDRegisterReply", HeaderID(buf))
	}
	did1, did2 := RegisterReplyDeviceID(buf)
	if did1 != 0x1122334455667788 || did2 != -42 {
		t.Fatalf("device id = (%x, %d), want (0x1122334455667788, -42)", did1, did2)
	}
}

func TestTrackerLinkRoundTrip(t *testing.T) {
	req := EncodeTrackerLinkRequest(7, 9)
	d1, d2 := TrackerLinkRequestDeviceID(req)
	if d1 != 7 || d2 != 9 {
		t.Fatalf("device id = (%d,%d), want (7,9)", d1, d2)
	}

	reply := EncodeTrackerLinkReply(123456)
	if lc := TrackerLinkReplyLinkCode(reply); lc != 123456 {
		t.Fatalf("link code = %d, want 123456", lc)
	}
}

func TestMonitorLinkRoundTrip(t *testing.T) {
	req := EncodeMonitorLinkRequest(654321)
	if lc := MonitorLinkRequestLinkCode(req); lc != 654321 {
		t.Fatalf("link code = %d, want 654321", lc)
	}

	reply := EncodeMonitorLinkReply(1, 2)
	d1, d2 := MonitorLinkReplyDeviceID(reply)
	if d1 != 1 || d2 != 2 {
		t.Fatalf("device id = (%d,%d), want (1,2)", d1, d2)
	}

	miss := EncodeMonitorLinkReply(0, 0)
	d1, d2 = MonitorLinkReplyDeviceID(miss)
	if d1 != 0 || d2 != 0 {
		t.Fatalf("miss reply device id = (%d,%d), want (0,0)", d1, d2)
	}
}

func TestStreamOpenRequestRoundTrip(t *testing.T) {
	buf := EncodeStreamOpenRequest(11, 22)
	d1, d2 := StreamOpenRequestDeviceID(buf)
	if d1 != 11 || d2 != 22 {
		t.Fatalf("device id = (%d,%d), want (11,22)", d1, d2)
	}
}
