// Package crypto provides the cryptographic primitives used by the HDCP engine:
// big-integer modular arithmetic for RSA and DSA, AES in the fixed modes the
// protocol needs, SHA-1 (legacy revocation lists), SHA-256, HMAC-SHA256 and
// byte-order helpers.
//
// All helpers operate on fixed-size buffers. Passing a buffer of the wrong size
// is a programming error and panics; no helper retries or recovers.
package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// Digest sizes.
const (
	// SHA256Size is the SHA-256 output length in bytes.
	SHA256Size = 32

	// SHA1Size is the SHA-1 output length in bytes. Only legacy revocation
	// lists are digested with SHA-1.
	SHA1Size = 20
)

// SHA256 computes the SHA-256 digest of message.
func SHA256(message []byte) [SHA256Size]byte {
	return sha256.Sum256(message)
}

// NewSHA256 returns a hash.Hash for computing SHA-256 digests incrementally.
//
// Usage:
//
//	h := crypto.NewSHA256()
//	h.Write(header)
//	h.Write(deviceIDs)
//	digest := h.Sum(nil)
func NewSHA256() hash.Hash {
	return sha256.New()
}

// SHA1 computes the SHA-1 digest of message.
func SHA1(message []byte) [SHA1Size]byte {
	return sha1.Sum(message)
}

// NewSHA1 returns a hash.Hash for computing SHA-1 digests incrementally.
func NewSHA1() hash.Hash {
	return sha1.New()
}
