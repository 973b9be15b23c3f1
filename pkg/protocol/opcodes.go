// Package protocol defines the YAT wire protocol: the common message
// header, the per-message-type codec, and the Tracking TLV sub-codec.
package protocol

// Message id constants. Every YAT message begins with a 4-byte common
// header (uint16 size, uint16 id); these ids select how the body is parsed.
const (
	IDPing               uint16 = 1
	IDRegisterRequest    uint16 = 5
	IDRegisterReply      uint16 = 6
	IDTrackerLinkRequest uint16 = 7
	IDTrackerLinkReply   uint16 = 8
	IDMonitorLinkRequest uint16 = 9
	IDMonitorLinkReply   uint16 = 10
	IDStreamOpenRequest  uint16 = 11
	IDResyncRequest      uint16 = 12
	IDResyncReply        uint16 = 13
	IDTracking           uint16 = 16
)

// MessageNames maps message ids to human-readable names for logging.
var MessageNames = map[uint16]string{
	IDPing:               "Ping",
	IDRegisterRequest:    "RegisterRequest",
	IDRegisterReply:      "RegisterReply",
	IDTrackerLinkRequest: "TrackerLinkRequest",
	IDTrackerLinkReply:   "TrackerLinkReply",
	IDMonitorLinkRequest: "MonitorLinkRequest",
	IDMonitorLinkReply:   "MonitorLinkReply",
	IDStreamOpenRequest:  "StreamOpenRequest",
	IDResyncRequest:      "ResyncRequest",
	IDResyncReply:        "ResyncReply",
	IDTracking:           "Tracking",
}

// Tracking TLV field ids (spec §6).
const (
	FieldBatteryLevel    uint8 = 0
	FieldNetworkName     uint8 = 1
	FieldLocation        uint8 = 2
	FieldTrackingStopped uint8 = 3
)
