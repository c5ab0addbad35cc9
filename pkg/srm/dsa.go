package srm

import (
	"errors"
	"fmt"

	"github.com/backkem/hdcp/pkg/crypto"
)

// DSAKey is the legacy DCP signing key.
type DSAKey struct {
	P, Q, G, Y []byte
}

// DSASize is the size of each of r and s.
const DSASize = 20

func (k DSAKey) check() error {
	if len(k.P) == 0 || len(k.Q) == 0 || len(k.G) == 0 || len(k.Y) == 0 {
		return fmt.Errorf("%w: empty DSA key", ErrRootKey)
	}
	if crypto.IsZero(k.P) || crypto.IsZero(k.Q) {
		return fmt.Errorf("%w: zero DSA modulus", ErrRootKey)
	}
	return nil
}

// VerifyDSA checks a DSA signature (r, s) over a digest:
//
//	w = s⁻¹ mod q
//	u1 = (digest·w) mod q
//	u2 = (r·w) mod q
//	v = ((g^u1 · y^u2) mod p) mod q
//
// The signature is valid if and only if v == r.
func VerifyDSA(digest, r, s []byte, key DSAKey) error {
	if err := key.check(); err != nil {
		return err
	}
	if crypto.IsZero(r) || crypto.IsZero(s) || !crypto.Less(r, key.Q) || !crypto.Less(s, key.Q) {
		return errors.New("r or s out of range")
	}

	w, ok := crypto.ModInverse(s, key.Q)
	if !ok {
		return errors.New("s not invertible")
	}
	u1 := crypto.ModMul(digest, w, key.Q)
	u2 := crypto.ModMul(r, w, key.Q)

	a := crypto.ModExp(key.G, u1, key.P)
	b := crypto.ModExp(key.Y, u2, key.P)
	v := crypto.ModMul(a, b, key.P)
	v = crypto.ModMul(v, []byte{1}, key.Q)

	if crypto.Less(v, r) || crypto.Less(r, v) {
		return errors.New("v != r")
	}
	return nil
}
