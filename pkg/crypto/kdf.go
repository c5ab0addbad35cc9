package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// StoreKeySize is the size of each session-store key.
const StoreKeySize = 32

// Info strings that separate the session-store keys.
var (
	storeEncInfo = []byte("hdcp-session-store-enc")
	storeMACInfo = []byte("hdcp-session-store-mac")
)

// StoreKeys are the keys protecting persisted session state.
type StoreKeys struct {
	// Enc keys AES-CTR over the record body. Only the first 16 bytes are used.
	Enc [StoreKeySize]byte

	// MAC keys the HMAC-SHA256 record signature.
	MAC [StoreKeySize]byte
}

// Zeroize clears both keys.
func (k *StoreKeys) Zeroize() {
	Zeroize(k.Enc[:])
	Zeroize(k.MAC[:])
}

// DeriveStoreKeys derives the session-store keys from the chip secret and the
// random seed chosen at Init. A new seed invalidates every record written
// under the previous one.
func DeriveStoreKeys(chipSecret, seed []byte) (*StoreKeys, error) {
	var keys StoreKeys
	for _, k := range []struct {
		dst  []byte
		info []byte
	}{
		{keys.Enc[:], storeEncInfo},
		{keys.MAC[:], storeMACInfo},
	} {
		b, err := HKDFSHA256(chipSecret, seed, k.info, len(k.dst))
		if err != nil {
			keys.Zeroize()
			return nil, err
		}
		copy(k.dst, b)
		Zeroize(b)
	}
	return &keys, nil
}

// HKDFSHA256 derives length bytes using HKDF-SHA256 (RFC 5869).
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}
