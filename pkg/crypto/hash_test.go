package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// FIPS 180-4 example vectors.
var digestVectors = []struct {
	name    string
	message string
	sha256  string
	sha1    string
}{
	{
		name:    "abc",
		message: "abc",
		sha256:  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		sha1:    "a9993e364706816aba3e25717850c26c9cd0d89d",
	},
	{
		name:    "empty",
		message: "",
		sha256:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		sha1:    "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	},
	{
		name:    "two_block",
		message: "abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
		sha256:  "248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1",
		sha1:    "84983e441c3bd26ebaae4aa1f95129e5e54670f1",
	},
}

func TestSHA256(t *testing.T) {
	for _, tc := range digestVectors {
		t.Run(tc.name, func(t *testing.T) {
			got := SHA256([]byte(tc.message))
			if hex.EncodeToString(got[:]) != tc.sha256 {
				t.Errorf("SHA256 = %x, want %s", got, tc.sha256)
			}
		})
	}
}

func TestSHA1(t *testing.T) {
	for _, tc := range digestVectors {
		t.Run(tc.name, func(t *testing.T) {
			got := SHA1([]byte(tc.message))
			if hex.EncodeToString(got[:]) != tc.sha1 {
				t.Errorf("SHA1 = %x, want %s", got, tc.sha1)
			}
		})
	}
}

func TestIncrementalDigests(t *testing.T) {
	msg := []byte(digestVectors[2].message)

	h := NewSHA256()
	h.Write(msg[:10])
	h.Write(msg[10:])
	want := SHA256(msg)
	if !bytes.Equal(h.Sum(nil), want[:]) {
		t.Error("incremental SHA-256 differs from one-shot")
	}

	h1 := NewSHA1()
	h1.Write(msg[:3])
	h1.Write(msg[3:])
	want1 := SHA1(msg)
	if !bytes.Equal(h1.Sum(nil), want1[:]) {
		t.Error("incremental SHA-1 differs from one-shot")
	}
}
