package protocol

import (
	"fmt"
	"io"
)

// WriteMessage writes a complete header-framed message (msg already contains
// the 4-byte common header at its start, as produced by each message type's
// Encode) to w in a single call.
//
// Go's net.Conn reads block until data is available or the connection is
// closed, so unlike the original reactor (which fed partial chunks to a
// StreamDefragger that accumulated bytes across non-blocking read events),
// a per-connection goroutine here can simply call io.ReadFull against the
// declared header size -- see ReadMessage in header.go. This function is
// the write-side counterpart, kept in its own file to mirror the teacher's
// framing.go/header split between read and write framing helpers.
func WriteMessage(w io.Writer, msg []byte) error {
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("yat: write message: %w", err)
	}
	return nil
}
