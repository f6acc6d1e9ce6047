package framing

import (
	"encoding/base64"
	"fmt"

	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// Valid key lengths in bytes.
const (
	KeySize128 = 16
	KeySize192 = 24
	KeySize256 = 32
)

// ParseKey decodes a hex key (32, 48 or 64 hex characters).
func ParseKey(keyHex string) ([]byte, error) {
	key, err := wire.FromHex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	switch len(key) {
	case KeySize128, KeySize192, KeySize256:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %d bytes (want 16, 24 or 32)", ErrInvalidKey, len(key))
	}
}

// EncodeBase64 renders a ciphertext for text-only transports such as the
// LoRa "data" field.
func EncodeBase64(ciphertext []byte) string {
	return base64.StdEncoding.EncodeToString(ciphertext)
}

// DecodeBase64 is the inverse of EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	return b, nil
}
