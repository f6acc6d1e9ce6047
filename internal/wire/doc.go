// Package wire provides the byte-level primitives shared by the radio codecs.
//
// Every reader takes a buffer and an offset and checks the bounds before
// indexing. A read past the end returns ErrShortBuffer instead of panicking,
// so decoders can treat truncated advertisements as unsupported input.
//
// Integers are assembled explicitly in the byte order the wire format uses:
//
//	v, err := wire.Uint16BE(payload, 2) // payload[2]<<8 | payload[3]
//	t, err := wire.Int16LE(payload, 4)  // two's complement, little-endian
//
// Signed conversions for odd widths (8, 16, 24 bits) go through ToSigned.
package wire
