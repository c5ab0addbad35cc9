package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"
)

func TestModExp(t *testing.T) {
	// 4^13 mod 497 = 445
	got := ModExp([]byte{4}, []byte{13}, []byte{0x01, 0xF1})
	if !bytes.Equal(got, []byte{0x01, 0xBD}) {
		t.Errorf("ModExp = %x, want 01bd", got)
	}
}

func TestModMulAndInverse(t *testing.T) {
	mod := []byte{0x00, 0x61} // 97, padded to two bytes
	inv, ok := ModInverse([]byte{5}, mod)
	if !ok {
		t.Fatal("5 must be invertible mod 97")
	}
	if len(inv) != 2 {
		t.Errorf("result length = %d, want modulus length", len(inv))
	}
	one := ModMul([]byte{5}, inv, mod)
	if !bytes.Equal(one, []byte{0, 1}) {
		t.Errorf("5 * 5^-1 mod 97 = %x", one)
	}

	if _, ok := ModInverse([]byte{6}, []byte{9}); ok {
		t.Error("6 has no inverse mod 9")
	}
}

func TestRSAPublic(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	n := key.N.Bytes()
	e := big.NewInt(int64(key.E)).Bytes()

	msg := make([]byte, len(n))
	msg[len(msg)-1] = 0x42
	sig := new(big.Int).Exp(new(big.Int).SetBytes(msg), key.D, key.N).FillBytes(make([]byte, len(n)))

	out, ok := RSAPublic(sig, n, e)
	if !ok {
		t.Fatal("RSAPublic rejected a valid signature")
	}
	if !bytes.Equal(out, msg) {
		t.Error("RSAPublic did not recover the message")
	}

	if _, ok := RSAPublic(n, n, e); ok {
		t.Error("signature equal to modulus must be rejected")
	}
}

func TestZeroModulusPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	ModExp([]byte{1}, []byte{1}, []byte{0, 0})
}

func TestByteHelpers(t *testing.T) {
	dst := make([]byte, 4)
	XOR(dst, []byte{0xF0, 0, 0, 1}, []byte{0x0F, 0, 0, 1})
	if !bytes.Equal(dst, []byte{0xFF, 0, 0, 0}) {
		t.Error("XOR")
	}

	key := []byte{0, 0, 0, 0, 0xAA}
	XORTail(key, []byte{0x01, 0x01})
	if !bytes.Equal(key, []byte{0, 0, 0, 0x01, 0xAB}) {
		t.Errorf("XORTail = %x", key)
	}
	if !Less([]byte{0, 1}, []byte{2}) || Less([]byte{3}, []byte{0, 2}) {
		t.Error("Less")
	}
}
