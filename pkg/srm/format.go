package srm

import (
	"encoding/binary"
	"fmt"
)

// Scheme selects the signature scheme of an SRM.
type Scheme uint8

const (
	// SchemeLegacy is the first-generation format: SHA-1 digests, DSA
	// signatures, 7-bit device counts.
	SchemeLegacy Scheme = 0

	// SchemeModern is the HDCP 2 format: SHA-256 digests, RSA-3072
	// signatures, 10-bit device counts.
	SchemeModern Scheme = 1
)

// String returns a human-readable name for the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeLegacy:
		return "Legacy"
	case SchemeModern:
		return "Modern"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the scheme is a defined value.
func (s Scheme) IsValid() bool {
	return s == SchemeLegacy || s == SchemeModern
}

// Format ids carried in the top nibble of the header word.
const (
	legacyFormatID = 0x8
	modernFormatID = 0x9
)

// Layout sizes.
const (
	// HeaderSize covers the header word and the generations/length word.
	HeaderSize = 8

	// lengthOrigin is where the length field starts counting.
	lengthOrigin = 4

	legacyCountSize = 1
	modernCountSize = 4

	legacySigSize = 2 * DSASize
	modernSigSize = 384

	// MinLegacyGeneration is the smallest legacy generation: count and signature.
	MinLegacyGeneration = legacyCountSize + legacySigSize

	// MinModernGeneration is the smallest modern generation.
	MinModernGeneration = modernCountSize + modernSigSize

	legacyCountMask = 0x7F
	modernCountMask = 0x3FF
)

// Header is the decoded pair of SRM header words:
//
//	word 0: id(31..28) hdcp2(27..24) reserved(23..16) version(15..0)
//	word 1: generations(31..24) length(23..0)
type Header struct {
	ID          uint8
	Scheme      Scheme
	Reserved    uint8
	Version     uint16
	Generations uint8
	Length      uint32
}

// PackHeader encodes the header words.
func PackHeader(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.BigEndian.PutUint32(b[0:], uint32(h.ID&0xF)<<28|uint32(h.Scheme&0xF)<<24|uint32(h.Reserved)<<16|uint32(h.Version))
	binary.BigEndian.PutUint32(b[4:], uint32(h.Generations)<<24|h.Length&0xFFFFFF)
	return b
}

// UnpackHeader decodes and sanity-checks the header words. limit is the
// number of bytes available for the whole SRM.
func UnpackHeader(b []byte, limit int) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header", ErrMalformed)
	}
	w0 := binary.BigEndian.Uint32(b[0:])
	w1 := binary.BigEndian.Uint32(b[4:])
	h := Header{
		ID:          uint8(w0 >> 28),
		Scheme:      Scheme(w0 >> 24 & 0xF),
		Reserved:    uint8(w0 >> 16),
		Version:     uint16(w0),
		Generations: uint8(w1 >> 24),
		Length:      w1 & 0xFFFFFF,
	}

	switch {
	case !h.Scheme.IsValid():
		return h, fmt.Errorf("%w: scheme %d", ErrMalformed, h.Scheme)
	case h.Scheme == SchemeLegacy && h.ID != legacyFormatID,
		h.Scheme == SchemeModern && h.ID != modernFormatID:
		return h, fmt.Errorf("%w: format id %#x for %s scheme", ErrMalformed, h.ID, h.Scheme)
	case h.Generations == 0:
		return h, fmt.Errorf("%w: no generations", ErrMalformed)
	}

	minGen := MinLegacyGeneration
	if h.Scheme == SchemeModern {
		minGen = MinModernGeneration
	}
	minLen := uint32(HeaderSize-lengthOrigin) + uint32(h.Generations)*uint32(minGen)
	if h.Length < minLen {
		return h, fmt.Errorf("%w: length %d below minimum %d for %d generations", ErrMalformed, h.Length, minLen, h.Generations)
	}
	if int64(h.Length)+lengthOrigin > int64(limit) {
		return h, fmt.Errorf("%w: length %d exceeds buffer of %d bytes", ErrMalformed, h.Length, limit)
	}
	return h, nil
}

// Size returns the total SRM size implied by the length field.
func (h Header) Size() int {
	return int(h.Length) + lengthOrigin
}

func (h Header) countSize() int {
	if h.Scheme == SchemeModern {
		return modernCountSize
	}
	return legacyCountSize
}

func (h Header) sigSize() int {
	if h.Scheme == SchemeModern {
		return modernSigSize
	}
	return legacySigSize
}

func (h Header) deviceCount(b []byte) int {
	if h.Scheme == SchemeModern {
		return int(binary.BigEndian.Uint32(b) & modernCountMask)
	}
	return int(b[0] & legacyCountMask)
}
