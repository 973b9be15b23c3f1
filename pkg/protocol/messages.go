package protocol

import "github.com/yat-project/yat/pkg/wire"

// Each message type below exposes Size (wire length including the 4-byte
// common header), Encode (writes the full message, header included, into a
// freshly allocated buffer) and pure Get-style accessors that read a field
// at its documented fixed offset without mutating the buffer -- the shape
// spec §4.1/§9 calls for instead of a stateful decoder per message.

// Ping carries no body.
const PingSize = HeaderSize

func EncodePing() []byte {
	buf := make([]byte, PingSize)
	PutHeader(buf, PingSize, IDPing)
	return buf
}

// RegisterRequest carries no body.
const RegisterRequestSize = HeaderSize

func EncodeRegisterRequest() []byte {
	buf := make([]byte, RegisterRequestSize)
	PutHeader(buf, RegisterRequestSize, IDRegisterRequest)
	return buf
}

// RegisterReply carries the newly assigned DeviceId as two int64 halves.
const RegisterReplySize = HeaderSize + 16

func EncodeRegisterReply(did1, did2 int64) []byte {
	buf := make([]byte, RegisterReplySize)
	PutHeader(buf, RegisterReplySize, IDRegisterReply)
	wire.PutInt64(buf, HeaderSize, did1)
	wire.PutInt64(buf, HeaderSize+8, did2)
	return buf
}

func RegisterReplyDeviceID(buf []byte) (int64, int64) {
	return wire.Int64(buf, HeaderSize), wire.Int64(buf, HeaderSize+8)
}

// TrackerLinkRequest carries the tracker's own DeviceId.
const TrackerLinkRequestSize = HeaderSize + 16

func EncodeTrackerLinkRequest(did1, did2 int64) []byte {
	buf := make([]byte, TrackerLinkRequestSize)
	PutHeader(buf, TrackerLinkRequestSize, IDTrackerLinkRequest)
	wire.PutInt64(buf, HeaderSize, did1)
	wire.PutInt64(buf, HeaderSize+8, did2)
	return buf
}

func TrackerLinkRequestDeviceID(buf []byte) (int64, int64) {
	return wire.Int64(buf, HeaderSize), wire.Int64(buf, HeaderSize+8)
}

// TrackerLinkReply carries the issued link code.
const TrackerLinkReplySize = HeaderSize + 4

func EncodeTrackerLinkReply(linkCode int32) []byte {
	buf := make([]byte, TrackerLinkReplySize)
	PutHeader(buf, TrackerLinkReplySize, IDTrackerLinkReply)
	wire.PutInt32(buf, HeaderSize, linkCode)
	return buf
}

func TrackerLinkReplyLinkCode(buf []byte) int32 {
	return wire.Int32(buf, HeaderSize)
}

// MonitorLinkRequest carries the link code being redeemed.
const MonitorLinkRequestSize = HeaderSize + 4

func EncodeMonitorLinkRequest(linkCode int32) []byte {
	buf := make([]byte, MonitorLinkRequestSize)
	PutHeader(buf, MonitorLinkRequestSize, IDMonitorLinkRequest)
	wire.PutInt32(buf, HeaderSize, linkCode)
	return buf
}

func MonitorLinkRequestLinkCode(buf []byte) int32 {
	return wire.Int32(buf, HeaderSize)
}

// MonitorLinkReply carries the resolved DeviceId, or zeros on a miss.
const MonitorLinkReplySize = HeaderSize + 16

func EncodeMonitorLinkReply(did1, did2 int64) []byte {
	buf := make([]byte, MonitorLinkReplySize)
	PutHeader(buf, MonitorLinkReplySize, IDMonitorLinkReply)
	wire.PutInt64(buf, HeaderSize, did1)
	wire.PutInt64(buf, HeaderSize+8, did2)
	return buf
}

func MonitorLinkReplyDeviceID(buf []byte) (int64, int64) {
	return wire.Int64(buf, HeaderSize), wire.Int64(buf, HeaderSize+8)
}

// StreamOpenRequest carries the DeviceId the monitor wants to subscribe to.
const StreamOpenRequestSize = HeaderSize + 16

func EncodeStreamOpenRequest(did1, did2 int64) []byte {
	buf := make([]byte, StreamOpenRequestSize)
	PutHeader(buf, StreamOpenRequestSize, IDStreamOpenRequest)
	wire.PutInt64(buf, HeaderSize, did1)
	wire.PutInt64(buf, HeaderSize+8, did2)
	return buf
}

func StreamOpenRequestDeviceID(buf []byte) (int64, int64) {
	return wire.Int64(buf, HeaderSize), wire.Int64(buf, HeaderSize+8)
}
