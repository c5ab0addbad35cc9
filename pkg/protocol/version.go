package protocol

import "fmt"

// Version is the HDCP 2.x version field carried in TxCaps and RxCaps.
type Version uint8

const (
	// Version20 is HDCP 2.0.
	Version20 Version = 0x00

	// Version21 is HDCP 2.1.
	Version21 Version = 0x01

	// Version22 is HDCP 2.2 and later.
	Version22 Version = 0x02
)

// String returns a human-readable name for the version.
func (v Version) String() string {
	switch v {
	case Version20:
		return "2.0"
	case Version21:
		return "2.1"
	case Version22:
		return "2.2"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// IsValid returns true if the version is a defined value.
func (v Version) IsValid() bool {
	return v <= Version22
}

// UsesRxInfo reports whether repeater V is computed over RxInfo and
// seq_num_V (2.1 and later) instead of the discrete topology fields.
func (v Version) UsesRxInfo() bool {
	return v >= Version21
}

// VersionMask is a bitmask of supported versions, bit n for Version(n).
type VersionMask uint8

// AllVersions supports 2.0 through 2.2.
const AllVersions VersionMask = 1<<Version20 | 1<<Version21 | 1<<Version22

// Has reports whether v is in the mask.
func (m VersionMask) Has(v Version) bool {
	return v.IsValid() && m&(1<<v) != 0
}

// Caps is a TxCaps or RxCaps field: version followed by a 16-bit capability mask.
type Caps [CapsSize]byte

// RepeaterBit is the RxCaps capability bit set by repeaters.
const RepeaterBit = 0x0001

// NewCaps builds a caps field.
func NewCaps(v Version, mask uint16) Caps {
	return Caps{byte(v), byte(mask >> 8), byte(mask)}
}

// Version returns the version byte.
func (c Caps) Version() Version {
	return Version(c[0])
}

// Mask returns the capability mask.
func (c Caps) Mask() uint16 {
	return uint16(c[1])<<8 | uint16(c[2])
}

// Repeater reports whether RxCaps advertises a repeater.
func (c Caps) Repeater() bool {
	return c.Mask()&RepeaterBit != 0
}
