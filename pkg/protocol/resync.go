package protocol

import "github.com/yat-project/yat/pkg/wire"

// ResyncRequest: int64 did1, int64 did2, uint8 n, uint8 pad, int64 sn0,
// int32 delta[n-1]. The sequence numbers it names are delta-compressed:
// the first is an absolute uint64 (carried here as int64, matching the
// header field's on-wire width), each subsequent one is a signed 32-bit
// decrement from the previous.
const resyncRequestFixedSize = HeaderSize + 16 + 1 + 1 + 8

// ResyncRequestMessageSize returns the total wire size of a ResyncRequest
// naming n sequence numbers (n between 0 and 255).
func ResyncRequestMessageSize(n int) int {
	if n == 0 {
		return HeaderSize + 16 + 1 + 1 // no sn0/deltas at all when n==0
	}
	return resyncRequestFixedSize + (n-1)*4
}

// ResyncRequestCount reads the declared sequence-number count.
func ResyncRequestCount(buf []byte) int {
	return int(buf[HeaderSize+16])
}

// ResyncRequestDeviceID reads the device id from a ResyncRequest.
func ResyncRequestDeviceID(buf []byte) (int64, int64) {
	return wire.Int64(buf, HeaderSize), wire.Int64(buf, HeaderSize+8)
}

// ValidateResyncRequest checks msg against the declared sequence-number
// count, returning ErrShortMessage if msg isn't even long enough to hold
// the count field, or ErrResyncSizeMismatch if msg's actual length
// disagrees with what the declared count implies (spec §4.3/§7
// FramingError). n is valid only when err is nil.
func ValidateResyncRequest(msg []byte) (n int, err error) {
	if len(msg) < HeaderSize+16+1 {
		return 0, ErrShortMessage
	}
	n = ResyncRequestCount(msg)
	if len(msg) != ResyncRequestMessageSize(n) {
		return n, ErrResyncSizeMismatch
	}
	return n, nil
}

// DecodeSequenceNumbers expands a ResyncRequest's delta-compressed sequence
// number list into n absolute values, preserving order. Callers validate
// msg's size against n with ValidateResyncRequest first, so read errors
// here cannot occur.
func DecodeSequenceNumbers(buf []byte, n int) []uint64 {
	if n == 0 {
		return nil
	}
	out := make([]uint64, n)
	c := wire.NewCursorAt(buf, HeaderSize+16+2)
	first, _ := c.Int64()
	out[0] = uint64(first)
	prev := first
	for i := 1; i < n; i++ {
		delta, _ := c.Int32()
		prev -= int64(delta)
		out[i] = uint64(prev)
	}
	return out
}

// EncodeResyncRequest builds a ResyncRequest for the given ordered,
// delta-encodable sequence numbers (first absolute, rest as decrements from
// the previous value in the same list -- callers are responsible for
// supplying a list whose deltas fit in int32, as the original sequence
// numbers always do in practice since they are issued in small bursts).
// ErrTooManySequenceNumbers is returned if sns has more than 255 entries,
// since the wire count field is a single byte.
func EncodeResyncRequest(did1, did2 int64, sns []uint64) ([]byte, error) {
	n := len(sns)
	if n > 255 {
		return nil, ErrTooManySequenceNumbers
	}
	size := ResyncRequestMessageSize(n)
	buf := make([]byte, size)
	PutHeader(buf, uint16(size), IDResyncRequest)
	b := wire.NewBuilder(buf[HeaderSize:])
	b.PutInt64(did1)
	b.PutInt64(did2)
	b.PutUint8(uint8(n))
	b.PutUint8(0) // pad
	if n == 0 {
		return buf, nil
	}
	b.PutInt64(int64(sns[0]))
	prev := int64(sns[0])
	for i := 1; i < n; i++ {
		delta := int32(prev - int64(sns[i]))
		b.PutInt32(delta)
		prev = int64(sns[i])
	}
	return buf, nil
}

// resyncPartitionSize returns the wire size of one partition's encoded
// sequence list (0 if empty: no absolute value is written for an empty
// partition, per spec §4.3).
func resyncPartitionSize(n int) int {
	if n == 0 {
		return 0
	}
	return 8 + (n-1)*4
}

// ResyncReplyMessageSize returns the total wire size of a ResyncReply
// naming nAck acked and nReq requested sequence numbers.
func ResyncReplyMessageSize(nAck, nReq int) int {
	return HeaderSize + 2 + resyncPartitionSize(nAck) + resyncPartitionSize(nReq)
}

// EncodeResyncReply builds a ResyncReply from the ack and request
// partitions, each already in the order they should appear on the wire.
func EncodeResyncReply(ack, req []uint64) []byte {
	size := ResyncReplyMessageSize(len(ack), len(req))
	buf := make([]byte, size)
	PutHeader(buf, uint16(size), IDResyncReply)
	buf[HeaderSize] = uint8(len(ack))
	buf[HeaderSize+1] = uint8(len(req))
	b := wire.NewBuilder(buf[HeaderSize+2:])
	putResyncPartition(b, ack)
	putResyncPartition(b, req)
	return buf
}

func putResyncPartition(b *wire.Builder, sns []uint64) {
	if len(sns) == 0 {
		return
	}
	b.PutInt64(int64(sns[0]))
	prev := int64(sns[0])
	for i := 1; i < len(sns); i++ {
		delta := int32(prev - int64(sns[i]))
		b.PutInt32(delta)
		prev = int64(sns[i])
	}
}

// ResyncReplyCounts reads the ack/request partition counts from a ResyncReply.
func ResyncReplyCounts(buf []byte) (nAck, nReq int) {
	return int(buf[HeaderSize]), int(buf[HeaderSize+1])
}

// DecodeResyncReply expands both partitions of a ResyncReply back into
// ordered absolute sequence-number lists.
func DecodeResyncReply(buf []byte) (ack, req []uint64) {
	nAck, nReq := ResyncReplyCounts(buf)
	c := wire.NewCursorAt(buf, HeaderSize+2)
	ack = getResyncPartition(c, nAck)
	req = getResyncPartition(c, nReq)
	return ack, req
}

func getResyncPartition(c *wire.Cursor, n int) []uint64 {
	if n == 0 {
		return nil
	}
	out := make([]uint64, n)
	first, _ := c.Int64()
	out[0] = uint64(first)
	prev := first
	for i := 1; i < n; i++ {
		delta, _ := c.Int32()
		prev -= int64(delta)
		out[i] = uint64(prev)
	}
	return out
}
