package framing

import "bytes"

// padByte fills the final block. Stripping it is lossy for messages that
// end in spaces; the encoder trims its input so its own frames are safe.
const padByte = ' '

// padRight appends padByte until len is a multiple of blockSize.
// Input that is already aligned is returned with no padding added.
func padRight(b []byte, blockSize int) []byte {
	n := (blockSize - len(b)%blockSize) % blockSize
	if n == 0 {
		return b
	}
	return append(b, bytes.Repeat([]byte{padByte}, n)...)
}

// stripPadding removes every trailing padByte.
func stripPadding(b []byte) []byte {
	return bytes.TrimRight(b, string(padByte))
}
