package framing

import "crypto/cipher"

// encryptECB encrypts each block of src independently. len(src) must be a
// multiple of the block size; callers pad first.
func encryptECB(block cipher.Block, src []byte) []byte {
	bs := block.BlockSize()
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += bs {
		block.Encrypt(dst[i:i+bs], src[i:i+bs])
	}
	return dst
}

// decryptECB is the inverse of encryptECB.
func decryptECB(block cipher.Block, src []byte) []byte {
	bs := block.BlockSize()
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += bs {
		block.Decrypt(dst[i:i+bs], src[i:i+bs])
	}
	return dst
}
