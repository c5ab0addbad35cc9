package accel

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
)

func newTestSoftware(t *testing.T) *Software {
	t.Helper()
	s, err := NewSoftware(SoftwareConfig{
		Keys: map[KeyID][]byte{
			KeyLC128: bytes.Repeat([]byte{0x93}, 16),
		},
		Rand: rand.Reader,
	})
	if err != nil {
		t.Fatalf("NewSoftware() error = %v", err)
	}
	return s
}

func TestNewSoftware_RequiresRand(t *testing.T) {
	if _, err := NewSoftware(SoftwareConfig{}); !errors.Is(err, ErrRandom) {
		t.Errorf("NewSoftware() error = %v, want ErrRandom", err)
	}
}

func TestSection(t *testing.T) {
	s := newTestSoftware(t)

	if _, err := s.SecretKey(KeyLC128); !errors.Is(err, ErrNotSecure) {
		t.Errorf("SecretKey outside section: error = %v, want ErrNotSecure", err)
	}

	outer := s.Enter()
	inner := s.Enter()
	if s.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", s.Depth())
	}

	key, err := s.SecretKey(KeyLC128)
	if err != nil {
		t.Fatalf("SecretKey() error = %v", err)
	}
	key[0] = 0
	again, _ := s.SecretKey(KeyLC128)
	if again[0] != 0x93 {
		t.Error("SecretKey must return a copy")
	}

	inner.Exit()
	inner.Exit()
	if s.Depth() != 1 {
		t.Errorf("Depth() = %d after double Exit, want 1", s.Depth())
	}
	outer.Exit()
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", s.Depth())
	}
}

func TestSecretKey_NotFound(t *testing.T) {
	s := newTestSoftware(t)
	sec := s.Enter()
	defer sec.Exit()

	if _, err := s.SecretKey(KeyPairing); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("error = %v, want ErrKeyNotFound", err)
	}
	s.SetKey(KeyPairing, []byte{1})
	if _, err := s.SecretKey(KeyPairing); err != nil {
		t.Errorf("SecretKey after SetKey: %v", err)
	}
}

func TestBlockOps(t *testing.T) {
	s := newTestSoftware(t)
	key, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	pt, _ := hex.DecodeString("00112233445566778899aabbccddeeff")

	ct := make([]byte, 16)
	if err := s.EncryptBlock(key, ct, pt); err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(ct) != "69c4e0d86a7b0430d8cdb78070b4c55a" {
		t.Errorf("EncryptBlock = %x", ct)
	}
	back := make([]byte, 16)
	if err := s.DecryptBlock(key, back, ct); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, pt) {
		t.Error("DecryptBlock did not invert EncryptBlock")
	}

	if err := s.EncryptBlock(key[:8], ct, pt); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key error = %v", err)
	}
	if err := s.EncryptBlock(key, ct[:8], pt); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("short block error = %v", err)
	}
}

func TestRandom(t *testing.T) {
	s, _ := NewSoftware(SoftwareConfig{Rand: bytes.NewReader([]byte{1, 2, 3})})
	buf := make([]byte, 3)
	if err := s.Random(buf); err != nil || !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("Random() = %x, %v", buf, err)
	}
	if err := s.Random(buf); !errors.Is(err, ErrRandom) {
		t.Errorf("exhausted source error = %v, want ErrRandom", err)
	}
}

func TestKeyID_String(t *testing.T) {
	if KeyLC128.String() != "LC128" || KeyID(99).String() != "Unknown" {
		t.Error("unexpected KeyID names")
	}
	if KeyUnknown.IsValid() || !KeyPairing.IsValid() {
		t.Error("unexpected IsValid results")
	}
}
