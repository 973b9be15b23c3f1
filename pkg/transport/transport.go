// Package transport provides the UDP datagram transport used by the YAT
// server's tracker-facing listener. Unlike the TCP session path (internal/session),
// each UDP datagram carries exactly one complete, already-framed message --
// there is no stream to defragment, so the transport only needs to validate
// that the header's declared size matches the datagram it arrived in.
package transport

import "context"

// Transport is the abstract datagram-level transport used by the UDP
// listener. Each call to Send/Recv operates on one complete, header-framed
// YAT message (see pkg/protocol). Implementations handle socket I/O and
// deadline/cancellation plumbing internally.
type Transport interface {
	// Send transmits a single framed message to the given address.
	Send(ctx context.Context, addr Addr, msg []byte) error

	// Recv blocks until a datagram arrives, validates its header, and
	// returns the message along with the address it came from.
	Recv(ctx context.Context) (msg []byte, from Addr, err error)

	// Close shuts down the transport. It is safe to call concurrently with
	// Send/Recv; blocked operations return an error.
	Close() error
}

// Addr is the subset of net.Addr the transport exposes to callers, kept
// narrow so callers needn't import net directly just to hold a reply address.
type Addr interface {
	String() string
}
