// Package wire provides stateless, position-addressable big-endian encoding
// primitives for the YAT binary protocol. Every function takes a buffer and
// an explicit offset; none of them own or retain a buffer. This mirrors the
// original protocol's static-method codec: callers track the write/read
// position themselves, so the same functions serve both encoding (a
// pre-sized destination slice) and decoding (a pure read at a fixed offset).
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned by the Cursor helpers when fewer bytes remain
// than the caller asked to read.
var ErrShortBuffer = errors.New("wire: insufficient data in buffer")

// PutUint16 writes v at buf[off:off+2], big-endian.
func PutUint16(buf []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(buf[off:off+2], v)
}

// Uint16 reads a big-endian uint16 at buf[off:off+2].
func Uint16(buf []byte, off int) uint16 {
	return binary.BigEndian.Uint16(buf[off : off+2])
}

// PutUint32 writes v at buf[off:off+4], big-endian.
func PutUint32(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:off+4], v)
}

// Uint32 reads a big-endian uint32 at buf[off:off+4].
func Uint32(buf []byte, off int) uint32 {
	return binary.BigEndian.Uint32(buf[off : off+4])
}

// PutInt32 writes v at buf[off:off+4], big-endian two's complement.
func PutInt32(buf []byte, off int, v int32) {
	PutUint32(buf, off, uint32(v))
}

// Int32 reads a big-endian two's-complement int32 at buf[off:off+4].
func Int32(buf []byte, off int) int32 {
	return int32(Uint32(buf, off))
}

// PutUint64 writes v at buf[off:off+8], big-endian.
func PutUint64(buf []byte, off int, v uint64) {
	binary.BigEndian.PutUint64(buf[off:off+8], v)
}

// Uint64 reads a big-endian uint64 at buf[off:off+8].
func Uint64(buf []byte, off int) uint64 {
	return binary.BigEndian.Uint64(buf[off : off+8])
}

// PutInt64 writes v at buf[off:off+8], big-endian two's complement.
func PutInt64(buf []byte, off int, v int64) {
	PutUint64(buf, off, uint64(v))
}

// Int64 reads a big-endian two's-complement int64 at buf[off:off+8].
func Int64(buf []byte, off int) int64 {
	return int64(Uint64(buf, off))
}

// PutFloat64 writes v at buf[off:off+8] as an IEEE-754 double, big-endian.
func PutFloat64(buf []byte, off int, v float64) {
	PutUint64(buf, off, math.Float64bits(v))
}

// Float64 reads an IEEE-754 double at buf[off:off+8], big-endian.
func Float64(buf []byte, off int) float64 {
	return math.Float64frombits(Uint64(buf, off))
}

// PutUint8 writes v at buf[off].
func PutUint8(buf []byte, off int, v uint8) {
	buf[off] = v
}

// Uint8 reads buf[off].
func Uint8(buf []byte, off int) uint8 {
	return buf[off]
}

// Builder tracks the next free write offset across a sequence of Put* calls,
// returning the new position after each write -- the Go analogue of the
// original codec's "encode(buffer, params) -> new position" functions.
type Builder struct {
	Buf []byte
	pos int
}

// NewBuilder wraps a pre-sized destination buffer for sequential encoding.
func NewBuilder(buf []byte) *Builder {
	return &Builder{Buf: buf}
}

// Pos returns the current write offset.
func (b *Builder) Pos() int { return b.pos }

func (b *Builder) PutUint8(v uint8) {
	PutUint8(b.Buf, b.pos, v)
	b.pos++
}

func (b *Builder) PutUint16(v uint16) {
	PutUint16(b.Buf, b.pos, v)
	b.pos += 2
}

func (b *Builder) PutInt32(v int32) {
	PutInt32(b.Buf, b.pos, v)
	b.pos += 4
}

func (b *Builder) PutUint32(v uint32) {
	PutUint32(b.Buf, b.pos, v)
	b.pos += 4
}

func (b *Builder) PutInt64(v int64) {
	PutInt64(b.Buf, b.pos, v)
	b.pos += 8
}

func (b *Builder) PutUint64(v uint64) {
	PutUint64(b.Buf, b.pos, v)
	b.pos += 8
}

func (b *Builder) PutFloat64(v float64) {
	PutFloat64(b.Buf, b.pos, v)
	b.pos += 8
}

func (b *Builder) PutBytes(p []byte) {
	copy(b.Buf[b.pos:], p)
	b.pos += len(p)
}

// Cursor tracks the next free read offset across a sequence of Get-style
// calls, bounds-checking every read against the underlying buffer length.
// It is the read-side counterpart to Builder, used where a single message
// has to be walked sequentially (Tracking's TLV list, ResyncRequest's delta
// chain) rather than addressed purely by fixed offsets.
type Cursor struct {
	Buf []byte
	pos int
}

// NewCursor wraps buf for sequential decoding starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{Buf: buf}
}

// NewCursorAt wraps buf for sequential decoding starting at the given offset.
func NewCursorAt(buf []byte, off int) *Cursor {
	return &Cursor{Buf: buf, pos: off}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.Buf) - c.pos }

func (c *Cursor) need(n int) error {
	if c.pos+n > len(c.Buf) {
		return ErrShortBuffer
	}
	return nil
}

func (c *Cursor) Uint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := Uint8(c.Buf, c.pos)
	c.pos++
	return v, nil
}

func (c *Cursor) Uint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := Uint16(c.Buf, c.pos)
	c.pos += 2
	return v, nil
}

func (c *Cursor) Int32() (int32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := Int32(c.Buf, c.pos)
	c.pos += 4
	return v, nil
}

func (c *Cursor) Int64() (int64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := Int64(c.Buf, c.pos)
	c.pos += 8
	return v, nil
}

func (c *Cursor) Float64() (float64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := Float64(c.Buf, c.pos)
	c.pos += 8
	return v, nil
}

func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.Buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}
