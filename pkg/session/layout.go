package session

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/backkem/hdcp/pkg/crypto"
)

// Layout constants.
const (
	// RegionAlign is the alignment of every scratch region.
	RegionAlign = 256

	// MaxSlots is the largest supported table; occupancy is a 64-bit mask.
	MaxSlots = 64

	// FormatVersion identifies the scratch layout.
	FormatVersion = 1

	// SeedSize is the size of the store-key seed kept in the keys block.
	SeedSize = 32

	ivSize  = crypto.AESBlockSize
	macSize = crypto.SHA256Size
)

var headerMagic = [4]byte{'H', 'D', 'S', 'S'}

func regionSize(n int) int {
	return (n + RegionAlign - 1) &^ (RegionAlign - 1)
}

// recordSize is the encoded size of a Session.
var recordSize = binary.Size(Session{})

// bodySize is the encrypted body size: the record padded to whole AES blocks.
var bodySize = (recordSize + crypto.AESBlockSize - 1) &^ (crypto.AESBlockSize - 1)

// SlotSize is the size of one session slot: IV ‖ body ‖ MAC, region aligned.
var SlotSize = regionSize(ivSize + bodySize + macSize)

// KeysBlockSize and HeaderBlockSize are the sizes of the two leading regions.
const (
	KeysBlockSize   = RegionAlign
	HeaderBlockSize = RegionAlign
)

// ScratchSize returns the scratch region size for a table of n slots.
func ScratchSize(n int) int {
	return KeysBlockSize + HeaderBlockSize + n*SlotSize
}

// Header flag bits.
const (
	// FlagInitDone is set once Init completed.
	FlagInitDone uint16 = 1 << 0
)

// Header is the global engine state persisted in the header block.
type Header struct {
	Magic         [4]byte
	FormatVersion uint16
	Flags         uint16
	MaxSessions   uint16
	InUse         uint16
	SeqCounter    uint32
	StreamCounter uint32
	SlotMask      uint64
	Versions      uint8
	ChipID        [16]byte
}

// InitDone reports whether the init-done flag is set.
func (h *Header) InitDone() bool {
	return h.Flags&FlagInitDone != 0
}

func (h *Header) slotUsed(slot int) bool {
	return h.SlotMask&(1<<uint(slot)) != 0
}

// keysBlock is the plaintext content of the keys block.
type keysBlock struct {
	Magic [4]byte
	Seed  [SeedSize]byte
}

func encode(v any, size int) []byte {
	var buf bytes.Buffer
	buf.Grow(size)
	// Writing fixed-size values to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.BigEndian, v)
	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out
}

func decode(b []byte, v any) error {
	if err := binary.Read(bytes.NewReader(b), binary.BigEndian, v); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return nil
}

// MarshalBinary encodes the session record in its fixed layout.
func (s *Session) MarshalBinary() ([]byte, error) {
	return encode(s, recordSize), nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (s *Session) UnmarshalBinary(b []byte) error {
	if len(b) < recordSize {
		return fmt.Errorf("%w: record is %d bytes, want %d", ErrFormat, len(b), recordSize)
	}
	return decode(b[:recordSize], s)
}
