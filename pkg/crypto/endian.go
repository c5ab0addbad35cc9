package crypto

import (
	"crypto/subtle"
	"fmt"
)

// XOR stores a ^ b into dst. All three must have the same length.
func XOR(dst, a, b []byte) {
	if len(a) != len(b) || len(dst) != len(a) {
		panic(fmt.Sprintf("crypto: XOR length mismatch (%d, %d, %d)", len(dst), len(a), len(b)))
	}
	subtle.XORBytes(dst, a, b)
}

// XORTail XORs v into the last len(v) bytes of dst. This is how the protocol
// mixes 64-bit values (Rn, Rrx) into the least-significant bits of wider keys.
func XORTail(dst, v []byte) {
	if len(v) > len(dst) {
		panic("crypto: XORTail value wider than destination")
	}
	off := len(dst) - len(v)
	subtle.XORBytes(dst[off:], dst[off:], v)
}

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	clear(b)
}
