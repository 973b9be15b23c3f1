package protocol

import "github.com/yat-project/yat/pkg/wire"

// Tracking carries a device id + sequence number (tracker-to-server) or no
// header fields at all (server-to-monitor, spec §6: "no device id / sn --
// the receiver knows the device from the stream"), followed by zero or more
// TLV fields. TLV layout: 1-byte total length (including this 2-byte TLV
// header), 1-byte field id, then the body.

const trackingT2SHeaderSize = HeaderSize + 16 + 8 // did1, did2, sn
const tlvHeaderSize = 2

// Field body sizes (spec §6 TLV catalog).
const (
	batteryLevelBodySize    = 8 + 2  // int64 time, int16 level%
	trackingStoppedBodySize = 8      // int64 time
	locationBodySize        = 8 + 24 // int64 time, 3x float64
)

// BatteryField holds a decoded BatteryLevel TLV.
type BatteryField struct {
	Time  int64
	Level int16
}

// NetworkField holds a decoded NetworkName TLV. Name is the raw byte
// payload -- spec §3 requires it be stored as bytes, decoded only for
// logging.
type NetworkField struct {
	Time int64
	Name []byte
}

// LocationField holds a decoded Location TLV.
type LocationField struct {
	Time          int64
	Lat, Lon, Alt float64
}

// TrackingStoppedField holds a decoded TrackingStopped TLV.
type TrackingStoppedField struct {
	Time int64
}

// TrackingFields is the parsed result of walking a Tracking message's TLV
// list. BrokenFields counts TLVs rejected as too short for their declared
// kind (spec §7 FieldError); Overrun is true if a TLV's declared length
// exceeded the remaining bytes, which stops parsing early without rolling
// back fields already applied (same §7 rule).
type TrackingFields struct {
	Battery         *BatteryField
	Network         *NetworkField
	Locations       []LocationField
	TrackingStopped *TrackingStoppedField
	BrokenFields    int
	Overrun         bool
}

// EncodeTrackingT2S builds a tracker-to-server Tracking message.
func EncodeTrackingT2S(did1, did2, sn int64, tlvs []byte) []byte {
	size := trackingT2SHeaderSize + len(tlvs)
	buf := make([]byte, size)
	PutHeader(buf, uint16(size), IDTracking)
	wire.PutInt64(buf, HeaderSize, did1)
	wire.PutInt64(buf, HeaderSize+8, did2)
	wire.PutInt64(buf, HeaderSize+16, sn)
	copy(buf[trackingT2SHeaderSize:], tlvs)
	return buf
}

// TrackingT2SDeviceID reads the device id from a tracker-to-server Tracking message.
func TrackingT2SDeviceID(buf []byte) (int64, int64) {
	return wire.Int64(buf, HeaderSize), wire.Int64(buf, HeaderSize+8)
}

// TrackingT2SSequenceNumber reads the sequence number from a tracker-to-server
// Tracking message. This is read unconditionally, before any TLV field is
// parsed, so a near-simultaneous ResyncRequest can already see it acked
// (spec §4.2).
func TrackingT2SSequenceNumber(buf []byte) int64 {
	return wire.Int64(buf, HeaderSize+16)
}

// TrackingT2STLVs returns the TLV region of a tracker-to-server Tracking message.
func TrackingT2STLVs(buf []byte) []byte {
	return buf[trackingT2SHeaderSize:]
}

// EncodeTrackingS2M builds a server-to-monitor Tracking message: just the
// header plus the TLV region, no device id or sequence number.
func EncodeTrackingS2M(tlvs []byte) []byte {
	size := HeaderSize + len(tlvs)
	buf := make([]byte, size)
	PutHeader(buf, uint16(size), IDTracking)
	copy(buf[HeaderSize:], tlvs)
	return buf
}

// TrackingS2MTLVs returns the TLV region of a server-to-monitor Tracking message.
func TrackingS2MTLVs(buf []byte) []byte {
	return buf[HeaderSize:]
}

// TLVBuilder accumulates encoded TLV fields for a Tracking message body.
type TLVBuilder struct {
	buf []byte
}

func (b *TLVBuilder) Bytes() []byte { return b.buf }

// grow appends totalLen zeroed bytes to b.buf and returns a Builder over
// just that new region, so each Put* call below writes its TLV header and
// body as one sequential run of wire.Builder calls.
func (b *TLVBuilder) grow(totalLen int) *wire.Builder {
	start := len(b.buf)
	b.buf = append(b.buf, make([]byte, totalLen)...)
	return wire.NewBuilder(b.buf[start:])
}

func (b *TLVBuilder) PutBattery(t int64, level int16) {
	w := b.grow(tlvHeaderSize + batteryLevelBodySize)
	w.PutUint8(tlvHeaderSize + batteryLevelBodySize)
	w.PutUint8(FieldBatteryLevel)
	w.PutInt64(t)
	w.PutUint16(uint16(level))
}

func (b *TLVBuilder) PutNetwork(t int64, name []byte) {
	totalLen := tlvHeaderSize + 8 + len(name)
	w := b.grow(totalLen)
	w.PutUint8(uint8(totalLen))
	w.PutUint8(FieldNetworkName)
	w.PutInt64(t)
	w.PutBytes(name)
}

func (b *TLVBuilder) PutLocation(t int64, lat, lon, alt float64) {
	w := b.grow(tlvHeaderSize + locationBodySize)
	w.PutUint8(tlvHeaderSize + locationBodySize)
	w.PutUint8(FieldLocation)
	w.PutInt64(t)
	w.PutFloat64(lat)
	w.PutFloat64(lon)
	w.PutFloat64(alt)
}

func (b *TLVBuilder) PutTrackingStopped(t int64) {
	w := b.grow(tlvHeaderSize + trackingStoppedBodySize)
	w.PutUint8(tlvHeaderSize + trackingStoppedBodySize)
	w.PutUint8(FieldTrackingStopped)
	w.PutInt64(t)
}

// ParseTLVs walks the TLV region of a Tracking message, applying the §7
// FieldError policy: a TLV whose declared length is 0 or exceeds the
// remaining bytes stops parsing (Overrun=true, ErrTLVOverrun) without
// rolling back fields already parsed; a TLV shorter than the minimum for
// its declared kind increments BrokenFields (ErrInvalidTLVLength) and is
// skipped by its declared length; an unrecognized field id is skipped by
// its declared length (UnknownFieldId, spec §7). The returned error is nil
// unless one of those two conditions occurred -- callers distinguish them
// with errors.Is.
func ParseTLVs(region []byte) (TrackingFields, error) {
	var out TrackingFields
	c := wire.NewCursor(region)
	for c.Remaining() > 0 {
		if c.Remaining() < tlvHeaderSize {
			out.Overrun = true
			break
		}
		totalLen, _ := c.Uint8()
		fieldID, _ := c.Uint8()
		bodyLen := int(totalLen) - tlvHeaderSize
		if bodyLen < 0 || bodyLen > c.Remaining() {
			out.Overrun = true
			break
		}
		body, _ := c.Bytes(bodyLen)
		bc := wire.NewCursor(body)

		switch fieldID {
		case FieldBatteryLevel:
			tm, err1 := bc.Int64()
			level, err2 := bc.Uint16()
			if err1 != nil || err2 != nil {
				out.BrokenFields++
			} else {
				out.Battery = &BatteryField{Time: tm, Level: int16(level)}
			}
		case FieldNetworkName:
			tm, err := bc.Int64()
			if err != nil {
				out.BrokenFields++
			} else {
				name := make([]byte, bc.Remaining())
				copy(name, body[bc.Pos():])
				out.Network = &NetworkField{Time: tm, Name: name}
			}
		case FieldLocation:
			tm, err1 := bc.Int64()
			lat, err2 := bc.Float64()
			lon, err3 := bc.Float64()
			alt, err4 := bc.Float64()
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
				out.BrokenFields++
			} else {
				out.Locations = append(out.Locations, LocationField{Time: tm, Lat: lat, Lon: lon, Alt: alt})
			}
		case FieldTrackingStopped:
			tm, err := bc.Int64()
			if err != nil {
				out.BrokenFields++
			} else {
				out.TrackingStopped = &TrackingStoppedField{Time: tm}
			}
		default:
			// UnknownFieldId: skip by declared length, continue.
		}
	}

	if out.Overrun {
		return out, ErrTLVOverrun
	}
	if out.BrokenFields > 0 {
		return out, ErrInvalidTLVLength
	}
	return out, nil
}
