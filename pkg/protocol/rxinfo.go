package protocol

import (
	"fmt"
	"math/bits"
)

// RxInfo is the 16-bit repeater topology word:
//
//	bits 15..12  reserved
//	bits 11..9   DEPTH
//	bits  8..4   DEVICE_COUNT
//	bit   3      MAX_DEVS_EXCEEDED
//	bit   2      MAX_CASCADE_EXCEEDED
//	bit   1      HDCP2_0_REPEATER_DOWNSTREAM
//	bit   0      HDCP1_DEVICE_DOWNSTREAM
type RxInfo struct {
	Depth              uint8
	DeviceCount        uint8
	MaxDevsExceeded    bool
	MaxCascadeExceeded bool
	HDCP20Downstream   bool
	HDCP1Downstream    bool
}

func bit(b bool, n uint) uint16 {
	if b {
		return 1 << n
	}
	return 0
}

// Pack encodes the topology word. Out-of-range depth or count values are
// truncated to their field width.
func (r RxInfo) Pack() uint16 {
	return uint16(r.Depth&0x7)<<9 |
		uint16(r.DeviceCount&0x1F)<<4 |
		bit(r.MaxDevsExceeded, 3) |
		bit(r.MaxCascadeExceeded, 2) |
		bit(r.HDCP20Downstream, 1) |
		bit(r.HDCP1Downstream, 0)
}

// UnpackRxInfo decodes a topology word. Reserved bits are ignored.
func UnpackRxInfo(w uint16) RxInfo {
	return RxInfo{
		Depth:              uint8(w>>9) & 0x7,
		DeviceCount:        uint8(w>>4) & 0x1F,
		MaxDevsExceeded:    w&(1<<3) != 0,
		MaxCascadeExceeded: w&(1<<2) != 0,
		HDCP20Downstream:   w&(1<<1) != 0,
		HDCP1Downstream:    w&1 != 0,
	}
}

// CheckTopology returns ErrTopologyExceeded if the repeater reports exceeded
// limits or a depth or device count above the protocol maximum.
func (r RxInfo) CheckTopology() error {
	switch {
	case r.MaxDevsExceeded:
		return fmt.Errorf("%w: MAX_DEVS_EXCEEDED", ErrTopologyExceeded)
	case r.MaxCascadeExceeded:
		return fmt.Errorf("%w: MAX_CASCADE_EXCEEDED", ErrTopologyExceeded)
	case r.Depth > MaxDepth:
		return fmt.Errorf("%w: depth %d", ErrTopologyExceeded, r.Depth)
	case r.DeviceCount > MaxDeviceCount:
		return fmt.Errorf("%w: device count %d", ErrTopologyExceeded, r.DeviceCount)
	}
	return nil
}

// ReceiverID is the 40-bit receiver identifier.
type ReceiverID [ReceiverIDSize]byte

// Valid reports whether the id has exactly twenty bits set, as every
// DCP-issued receiver id does.
func (id ReceiverID) Valid() bool {
	n := 0
	for _, b := range id {
		n += bits.OnesCount8(b)
	}
	return n == 20
}

// String formats the id as hex.
func (id ReceiverID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// StreamEntry is one content stream in a RepeaterAuth_Stream_Manage message.
type StreamEntry struct {
	StreamCtr       uint32
	ContentStreamID uint16
	Type            uint8
}

// StreamEntrySize is the size of an encoded StreamEntry.
const StreamEntrySize = 7

// Append appends StreamCtr ‖ ContentStreamID ‖ Type.
func (e StreamEntry) Append(b []byte) []byte {
	return append(b,
		byte(e.StreamCtr>>24), byte(e.StreamCtr>>16), byte(e.StreamCtr>>8), byte(e.StreamCtr),
		byte(e.ContentStreamID>>8), byte(e.ContentStreamID),
		e.Type)
}

// PackStreamIDType packs a content stream id and stream type into the 32-bit
// parameter-block field: bits 23..8 ContentStreamID, bits 7..0 Type.
func PackStreamIDType(id uint16, typ uint8) uint32 {
	return uint32(id)<<8 | uint32(typ)
}

// UnpackStreamIDType is the inverse of PackStreamIDType.
func UnpackStreamIDType(v uint32) (id uint16, typ uint8) {
	return uint16(v >> 8), uint8(v)
}
