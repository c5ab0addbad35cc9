package crypto

import (
	"crypto/cipher"
	"encoding/binary"
)

// AESCTR is the counter-mode stream used for content encryption and for the
// session store. The counter block is split into a fixed 64-bit prefix and a
// 64-bit big-endian counter; only the counter half increments, and it wraps
// within 64 bits without carrying into the prefix.
type AESCTR struct {
	block  cipher.Block
	prefix [8]byte
	ctr    uint64
}

// NewAESCTR creates a stream keyed with a 16-byte key, starting at the given
// counter block.
func NewAESCTR(key []byte, counterBlock [AESBlockSize]byte) *AESCTR {
	s := &AESCTR{block: newBlock(key)}
	copy(s.prefix[:], counterBlock[:8])
	s.ctr = binary.BigEndian.Uint64(counterBlock[8:])
	return s
}

// XORBlocks encrypts (or decrypts) whole 16-byte blocks of src into dst and
// advances the counter by the number of blocks processed.
func (s *AESCTR) XORBlocks(dst, src []byte) {
	checkBlocks("CTR", dst, src)

	var in, ks [AESBlockSize]byte
	copy(in[:8], s.prefix[:])
	for i := 0; i < len(src); i += AESBlockSize {
		binary.BigEndian.PutUint64(in[8:], s.ctr)
		s.block.Encrypt(ks[:], in[:])
		for j := 0; j < AESBlockSize; j++ {
			dst[i+j] = src[i+j] ^ ks[j]
		}
		s.ctr++
	}
	Zeroize(ks[:])
}

// Counter returns the low 64-bit counter value of the next block.
func (s *AESCTR) Counter() uint64 {
	return s.ctr
}

// AESCTRXOR is a convenience wrapper for a one-shot CTR operation over an
// arbitrary-length buffer. The final partial block uses a truncated keystream.
func AESCTRXOR(key []byte, counterBlock [AESBlockSize]byte, dst, src []byte) {
	full := len(src) &^ (AESBlockSize - 1)
	s := NewAESCTR(key, counterBlock)
	s.XORBlocks(dst[:full], src[:full])
	if rest := len(src) - full; rest > 0 {
		var pad [AESBlockSize]byte
		copy(pad[:], src[full:])
		s.XORBlocks(pad[:], pad[:])
		copy(dst[full:], pad[:rest])
	}
}
