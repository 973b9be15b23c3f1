package protocol

import "errors"

// Sentinel errors for the codec, checked with errors.Is at call sites.
var (
	// ErrShortMessage is returned when a buffer is too small for the field
	// being decoded at its documented offset.
	ErrShortMessage = errors.New("yat: message shorter than required for this field")

	// ErrInvalidTLVLength is returned when a Tracking TLV's declared length
	// is smaller than the minimum for its kind.
	ErrInvalidTLVLength = errors.New("yat: invalid TLV length")

	// ErrTLVOverrun is returned when a TLV's declared length exceeds the
	// remaining bytes of the containing message (spec §4.1/§7 FieldError),
	// or is too small (0 or 1) to cover the TLV's own 2-byte header.
	ErrTLVOverrun = errors.New("yat: TLV length exceeds remaining message bytes")

	// ErrResyncSizeMismatch is returned when a ResyncRequest's declared
	// count disagrees with the actual number of bytes received (spec §4.3).
	ErrResyncSizeMismatch = errors.New("yat: ResyncRequest size does not match declared count")

	// ErrTooManySequenceNumbers is returned when a ResyncRequest declares
	// more than 255 sequence numbers (the count field is a single byte).
	ErrTooManySequenceNumbers = errors.New("yat: ResyncRequest count exceeds 255")
)
