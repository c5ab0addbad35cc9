package srm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/backkem/hdcp/pkg/crypto"
)

// sha256DigestInfo is the DER prefix of DigestInfo for SHA-256.
var sha256DigestInfo = []byte{
	0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01,
	0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
}

var errPadding = errors.New("encoded message mismatch")

// EMSAPKCS1v15SHA256 builds the k-byte encoding of a SHA-256 digest:
//
//	0x00 ‖ 0x01 ‖ 0xFF... ‖ 0x00 ‖ DigestInfo ‖ digest
func EMSAPKCS1v15SHA256(digest []byte, k int) ([]byte, error) {
	if len(digest) != crypto.SHA256Size {
		return nil, fmt.Errorf("%w: digest length %d", ErrRootKey, len(digest))
	}
	tLen := len(sha256DigestInfo) + len(digest)
	if k < tLen+11 {
		return nil, fmt.Errorf("%w: modulus too short for PKCS#1 v1.5", ErrRootKey)
	}
	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xFF
	}
	copy(em[k-tLen:], sha256DigestInfo)
	copy(em[k-len(digest):], digest)
	return em, nil
}

// VerifyRSA checks an RSASSA-PKCS1-v1_5/SHA-256 signature over msg.
func VerifyRSA(msg, sig []byte, root RootKey) error {
	digest := crypto.SHA256(msg)
	return verifyRSADigest(digest[:], sig, root)
}

func verifyRSADigest(digest, sig []byte, root RootKey) error {
	if err := root.check(); err != nil {
		return err
	}
	k := len(root.Modulus)
	if len(sig) != k {
		return fmt.Errorf("signature length %d, want %d", len(sig), k)
	}
	em, err := EMSAPKCS1v15SHA256(digest, k)
	if err != nil {
		return err
	}
	m, ok := crypto.RSAPublic(sig, root.Modulus, root.Exponent)
	if !ok {
		return errors.New("signature out of range")
	}
	if !bytes.Equal(m, em) {
		return errPadding
	}
	return nil
}
