package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// RFC 4231 HMAC-SHA-256 vectors.
var hmacVectors = []struct {
	name     string
	key      string
	data     string
	expected string
}{
	{
		name:     "RFC4231_TC1",
		key:      "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		data:     "4869205468657265",
		expected: "b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
	},
	{
		name:     "RFC4231_TC2",
		key:      "4a656665",
		data:     "7768617420646f2079612077616e7420666f72206e6f7468696e673f",
		expected: "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
	},
}

func TestHMACSHA256(t *testing.T) {
	for _, tc := range hmacVectors {
		t.Run(tc.name, func(t *testing.T) {
			key, _ := hex.DecodeString(tc.key)
			data, _ := hex.DecodeString(tc.data)
			want, _ := hex.DecodeString(tc.expected)

			got := HMACSHA256(key, data)
			if !bytes.Equal(got[:], want) {
				t.Errorf("HMAC mismatch\ngot:  %x\nwant: %x", got, want)
			}

			h := NewHMACSHA256(key)
			h.Write(data[:2])
			h.Write(data[2:])
			if !bytes.Equal(h.Sum(nil), want) {
				t.Error("incremental HMAC mismatch")
			}
		})
	}
}

func TestHMACEqual(t *testing.T) {
	a := []byte{1, 2, 3}
	if !HMACEqual(a, []byte{1, 2, 3}) {
		t.Error("equal MACs reported different")
	}
	if HMACEqual(a, []byte{1, 2, 4}) {
		t.Error("different MACs reported equal")
	}
	if HMACEqual(a, a[:2]) {
		t.Error("different lengths reported equal")
	}
}
