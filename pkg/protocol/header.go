package protocol

import (
	"fmt"
	"io"

	"github.com/yat-project/yat/pkg/wire"
)

// HeaderSize is the size in bytes of the common message header: a 16-bit
// total size field (including this header) followed by a 16-bit message id.
const HeaderSize = 4

// MaxMessageSize is the largest total message size the protocol allows
// (the 16-bit size field itself could hold up to 65535).
const MaxMessageSize = 32767

// PutHeader writes the common 4-byte header at buf[0:4].
func PutHeader(buf []byte, size uint16, id uint16) {
	wire.PutUint16(buf, 0, size)
	wire.PutUint16(buf, 2, id)
}

// HeaderSizeField reads the size field from a header-sized (or larger) buffer.
func HeaderSizeField(buf []byte) uint16 {
	return wire.Uint16(buf, 0)
}

// HeaderID reads the message id field from a header-sized (or larger) buffer.
func HeaderID(buf []byte) uint16 {
	return wire.Uint16(buf, 2)
}

// ReadMessage reads one complete, header-framed YAT message from r: it reads
// the 4-byte common header, validates the declared size, then reads the
// remaining body bytes. It returns the whole message (header included).
// Used by the TCP session path; WriteMessage in pkg/protocol/framing.go is
// its write-side counterpart.
func ReadMessage(r io.Reader) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := HeaderSizeField(hdr[:])
	if int(size) < HeaderSize {
		return nil, fmt.Errorf("yat: invalid message size %d (smaller than header)", size)
	}
	buf := make([]byte, size)
	copy(buf, hdr[:])
	if size > HeaderSize {
		if _, err := io.ReadFull(r, buf[HeaderSize:]); err != nil {
			return nil, fmt.Errorf("yat: read message body: %w", err)
		}
	}
	return buf, nil
}
