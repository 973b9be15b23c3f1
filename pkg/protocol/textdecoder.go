package protocol

import "unicode/utf8"

// DecodeErrorSentinel is returned by TextDecoder.Decode in place of the
// whole field when any byte of the input is not valid UTF-8, matching
// java:Protocol.java's StringDecoder.ERROR -- a malformed sequence never
// yields a partial string, only this sentinel.
const DecodeErrorSentinel = "<invalid-utf8>"

// TextDecoder incrementally decodes a byte field (e.g. NetworkName) into a
// string, reusing its output buffer across calls so repeated decodes of the
// same session's fields don't churn the allocator. It is per-session scratch
// state (SPEC_FULL.md §3.1), not part of the wire codec itself -- the codec
// hands TextDecoder raw bytes and never looks inside a string.
type TextDecoder struct {
	out []rune
}

// Decode returns the string decoded from b, or DecodeErrorSentinel if any
// byte of b is not valid UTF-8. The returned string does not alias d's
// internal buffer or b.
func (d *TextDecoder) Decode(b []byte) string {
	d.out = d.out[:0]
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return DecodeErrorSentinel
		}
		d.out = append(d.out, r)
		b = b[size:]
	}
	return string(d.out)
}

// Reset discards any retained output buffer capacity.
func (d *TextDecoder) Reset() {
	d.out = nil
}
