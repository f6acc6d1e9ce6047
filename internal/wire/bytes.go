package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// need checks that n bytes are readable at off.
func need(buf []byte, off, n int) error {
	if off < 0 || n < 0 || off+n > len(buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, off, len(buf))
	}
	return nil
}

// Uint8 returns the byte at off.
func Uint8(buf []byte, off int) (uint8, error) {
	if err := need(buf, off, 1); err != nil {
		return 0, err
	}
	return buf[off], nil
}

// Int8 returns the byte at off as a two's complement value.
func Int8(buf []byte, off int) (int8, error) {
	v, err := Uint8(buf, off)
	if err != nil {
		return 0, err
	}
	return SignedByte(v), nil
}

// Uint16BE reads a big-endian uint16 at off.
func Uint16BE(buf []byte, off int) (uint16, error) {
	if err := need(buf, off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[off:]), nil
}

// Int16BE reads a big-endian two's complement int16 at off.
func Int16BE(buf []byte, off int) (int16, error) {
	v, err := Uint16BE(buf, off)
	if err != nil {
		return 0, err
	}
	return int16(v), nil //nolint:gosec // two's complement reinterpretation
}

// Uint16LE reads a little-endian uint16 at off.
func Uint16LE(buf []byte, off int) (uint16, error) {
	if err := need(buf, off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[off:]), nil
}

// Int16LE reads a little-endian two's complement int16 at off.
func Int16LE(buf []byte, off int) (int16, error) {
	v, err := Uint16LE(buf, off)
	if err != nil {
		return 0, err
	}
	return int16(v), nil //nolint:gosec // two's complement reinterpretation
}

// Uint24LE reads a little-endian 24-bit unsigned value at off.
func Uint24LE(buf []byte, off int) (uint32, error) {
	if err := need(buf, off, 3); err != nil {
		return 0, err
	}
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16, nil
}

// Int24LE reads a little-endian 24-bit two's complement value at off.
func Int24LE(buf []byte, off int) (int32, error) {
	v, err := Uint24LE(buf, off)
	if err != nil {
		return 0, err
	}
	return int32(ToSigned(v, 24)), nil //nolint:gosec // bounded to 24 bits
}

// Uint32LE reads a little-endian uint32 at off.
func Uint32LE(buf []byte, off int) (uint32, error) {
	if err := need(buf, off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

// Slice returns n bytes starting at off without copying.
func Slice(buf []byte, off, n int) ([]byte, error) {
	if err := need(buf, off, n); err != nil {
		return nil, err
	}
	return buf[off : off+n], nil
}

// SignedByte reinterprets b as a two's complement int8.
func SignedByte(b byte) int8 {
	return int8(b) //nolint:gosec // two's complement reinterpretation
}

// ToSigned interprets the low bits of v as a two's complement number of the
// given width. Bits above the width are ignored.
func ToSigned(v uint32, bits uint) int64 {
	if bits == 0 || bits > 32 {
		return int64(v)
	}
	if bits < 32 {
		v &= uint32(1)<<bits - 1
	}
	if v&(1<<(bits-1)) != 0 {
		return int64(v) - int64(1)<<bits
	}
	return int64(v)
}

// FromHex decodes a hex string. Surrounding whitespace and ':' or '-'
// separators (as in "bc:02:6e") are ignored; case does not matter.
func FromHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	return b, nil
}

// ToHex encodes b as lowercase hex without separators.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}
