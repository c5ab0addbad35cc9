package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// HMACSHA256 computes HMAC-SHA256 of message under key.
func HMACSHA256(key, message []byte) [SHA256Size]byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	var result [SHA256Size]byte
	copy(result[:], h.Sum(nil))
	return result
}

// NewHMACSHA256 returns a hash.Hash for computing HMAC-SHA256 incrementally.
// The protocol MACs (V, M) are computed over concatenations, so callers
// write each field in order instead of building one buffer.
func NewHMACSHA256(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

// HMACEqual compares two MACs in constant time.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
