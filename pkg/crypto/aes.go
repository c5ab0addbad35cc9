package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AES sizes.
const (
	// AESBlockSize is the AES block size in bytes.
	AESBlockSize = aes.BlockSize

	// AESKeySize is the AES-128 key size used throughout the protocol.
	AESKeySize = 16
)

// newBlock returns an AES-128 block cipher. A key of any other size is a
// programming error.
func newBlock(key []byte) cipher.Block {
	if len(key) != AESKeySize {
		panic(fmt.Sprintf("crypto: AES key must be %d bytes, got %d", AESKeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return block
}

func checkBlocks(name string, dst, src []byte) {
	if len(src)%AESBlockSize != 0 {
		panic(fmt.Sprintf("crypto: %s input must be a multiple of %d bytes, got %d", name, AESBlockSize, len(src)))
	}
	if len(dst) < len(src) {
		panic(fmt.Sprintf("crypto: %s output too small", name))
	}
}

// AESEncryptECB encrypts src block by block into dst.
func AESEncryptECB(key, dst, src []byte) {
	checkBlocks("ECB", dst, src)
	block := newBlock(key)
	for i := 0; i < len(src); i += AESBlockSize {
		block.Encrypt(dst[i:i+AESBlockSize], src[i:i+AESBlockSize])
	}
}

// AESDecryptECB decrypts src block by block into dst.
func AESDecryptECB(key, dst, src []byte) {
	checkBlocks("ECB", dst, src)
	block := newBlock(key)
	for i := 0; i < len(src); i += AESBlockSize {
		block.Decrypt(dst[i:i+AESBlockSize], src[i:i+AESBlockSize])
	}
}
