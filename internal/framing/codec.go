package framing

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"
)

// BlockSize is the cipher block size; every frame is a multiple of it.
const BlockSize = aes.BlockSize

// Codec encodes and decodes frames with one shared key.
type Codec struct {
	block cipher.Block
}

// NewCodec creates a codec for an AES-128, AES-192 or AES-256 key.
//
// Returns:
//   - *Codec: Ready for use from any goroutine
//   - error: ErrInvalidKey if the key is not 16, 24 or 32 bytes
func NewCodec(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
	return &Codec{block: block}, nil
}

// BlockSize returns the cipher block size in bytes.
func (c *Codec) BlockSize() int {
	return c.block.BlockSize()
}

// Encode trims msg, prefixes its checksum, pads it to the block size and
// encrypts it. The result is deterministic for a given message and key.
//
// Returns:
//   - []byte: Ciphertext, a positive multiple of BlockSize
//   - error: ErrEmptyMessage if msg is blank
func (c *Codec) Encode(msg string) ([]byte, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	plain := make([]byte, 0, ChecksumSize+len(msg)+BlockSize)
	plain = append(plain, Checksum(msg)...)
	plain = append(plain, msg...)
	plain = padRight(plain, c.block.BlockSize())

	return encryptECB(c.block, plain), nil
}

// Decode decrypts a frame, strips the padding and verifies the checksum.
//
// It never panics on hostile input. Rejections match ErrMalformedFrame or
// ErrChecksumMismatch; use Reason for a log label.
//
// Returns:
//   - string: The authenticated message body
//   - error: ErrTooShort, ErrEmptyPlaintext, ErrTooShortAfterStrip or ErrChecksumMismatch
func (c *Codec) Decode(ciphertext []byte) (string, error) {
	bs := c.block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooShort, len(ciphertext))
	}

	plain := decryptECB(c.block, ciphertext)
	if len(plain) == 0 {
		return "", ErrEmptyPlaintext
	}

	plain = stripPadding(plain)
	if len(plain) < ChecksumSize {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooShortAfterStrip, len(plain))
	}

	received := string(plain[:ChecksumSize])
	body := string(plain[ChecksumSize:])
	if expected := Checksum(body); received != expected {
		return "", fmt.Errorf("%w: got %q, want %q", ErrChecksumMismatch, received, expected)
	}

	return body, nil
}

// Encode is a one-shot helper around NewCodec and Codec.Encode.
func Encode(msg string, key []byte) ([]byte, error) {
	c, err := NewCodec(key)
	if err != nil {
		return nil, err
	}
	return c.Encode(msg)
}

// Decode is a one-shot helper around NewCodec and Codec.Decode.
func Decode(ciphertext, key []byte) (string, error) {
	c, err := NewCodec(key)
	if err != nil {
		return "", err
	}
	return c.Decode(ciphertext)
}
