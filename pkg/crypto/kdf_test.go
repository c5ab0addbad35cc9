package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestHKDFSHA256_RFC5869(t *testing.T) {
	// RFC 5869 Appendix A.1.
	ikm := bytes.Repeat([]byte{0x0b}, 22)
	salt, _ := hex.DecodeString("000102030405060708090a0b0c")
	info, _ := hex.DecodeString("f0f1f2f3f4f5f6f7f8f9")
	want := "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865"

	got, err := HKDFSHA256(ikm, salt, info, 42)
	if err != nil {
		t.Fatalf("HKDFSHA256() error = %v", err)
	}
	if hex.EncodeToString(got) != want {
		t.Errorf("OKM = %x, want %s", got, want)
	}
}

func TestDeriveStoreKeys(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 32)
	seed := bytes.Repeat([]byte{0x01}, 16)

	k1, err := DeriveStoreKeys(secret, seed)
	if err != nil {
		t.Fatalf("DeriveStoreKeys() error = %v", err)
	}
	k2, _ := DeriveStoreKeys(secret, seed)
	if k1.Enc != k2.Enc || k1.MAC != k2.MAC {
		t.Error("derivation is not deterministic")
	}
	if k1.Enc == k1.MAC {
		t.Error("encryption and MAC keys must differ")
	}
	if mac, _ := HKDFSHA256(secret, seed, storeMACInfo, StoreKeySize); !bytes.Equal(mac, k1.MAC[:]) {
		t.Error("MAC key is not HKDF-SHA256 under its info string")
	}

	seed[0] ^= 1
	k3, _ := DeriveStoreKeys(secret, seed)
	if k3.Enc == k1.Enc {
		t.Error("a new seed must produce new keys")
	}

	k3.Zeroize()
	if !IsZero(k3.Enc[:]) || !IsZero(k3.MAC[:]) {
		t.Error("Zeroize left key material behind")
	}
}
