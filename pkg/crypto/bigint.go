package crypto

import (
	"math/big"
)

// The big-integer helpers take and return unsigned big-endian byte strings.
// Results are left-padded to the length of the modulus so that callers can
// compare them byte-for-byte against encoded values.

func toInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func modulus(mod []byte) *big.Int {
	m := toInt(mod)
	if m.Sign() == 0 {
		panic("crypto: zero modulus")
	}
	return m
}

func fixed(v *big.Int, size int) []byte {
	out := make([]byte, size)
	return v.FillBytes(out)
}

// ModExp computes base^exp mod mod.
func ModExp(base, exp, mod []byte) []byte {
	m := modulus(mod)
	r := new(big.Int).Exp(toInt(base), toInt(exp), m)
	return fixed(r, len(mod))
}

// ModMul computes a*b mod mod.
func ModMul(a, b, mod []byte) []byte {
	m := modulus(mod)
	r := new(big.Int).Mul(toInt(a), toInt(b))
	r.Mod(r, m)
	return fixed(r, len(mod))
}

// ModInverse computes a^-1 mod mod. It returns false when a has no inverse,
// which is possible for attacker-supplied signature values.
func ModInverse(a, mod []byte) ([]byte, bool) {
	m := modulus(mod)
	r := new(big.Int).ModInverse(toInt(a), m)
	if r == nil {
		return nil, false
	}
	return fixed(r, len(mod)), true
}

// Less reports whether a < b as unsigned big-endian integers.
func Less(a, b []byte) bool {
	return toInt(a).Cmp(toInt(b)) < 0
}

// IsZero reports whether every byte of a is zero.
func IsZero(a []byte) bool {
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}

// RSAPublic applies the RSA public operation sig^e mod n. The result has the
// length of n. ok is false when sig is not smaller than n.
func RSAPublic(sig, n, e []byte) (out []byte, ok bool) {
	if !Less(sig, n) {
		return nil, false
	}
	return ModExp(sig, e, n), true
}
