package framing

import "fmt"

// ChecksumSize is the number of hex characters the checksum occupies.
const ChecksumSize = 4

// Checksum returns the XOR fold of every byte of msg rendered as lowercase
// hex, zero-padded on the left and cut to the last ChecksumSize digits.
func Checksum(msg string) string {
	var fold uint32
	for i := 0; i < len(msg); i++ {
		fold ^= uint32(msg[i])
	}
	return renderChecksum(fold)
}

func renderChecksum(fold uint32) string {
	s := fmt.Sprintf("%0*x", ChecksumSize, fold)
	return s[len(s)-ChecksumSize:]
}
