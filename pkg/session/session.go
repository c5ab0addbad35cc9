package session

import (
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
)

// ID is a 32-bit session id: a 24-bit allocation sequence in the high bits
// and the slot index in the low 8 bits. A slot reused by a new session gets a
// new id, so a stale id never reaches the new occupant.
type ID uint32

// MakeID combines a sequence value and a slot index.
func MakeID(seq uint32, slot int) ID {
	return ID(seq&0xFFFFFF)<<8 | ID(slot&0xFF)
}

// Slot returns the slot index.
func (id ID) Slot() int {
	return int(id & 0xFF)
}

// Seq returns the allocation sequence value.
func (id ID) Seq() uint32 {
	return uint32(id >> 8)
}

// Stream holds the counters of one content stream.
type Stream struct {
	InputCtr        uint64
	StreamCtr       uint32
	ContentStreamID uint16
	Type            uint8
}

// Session is the persisted state of one handshake. Every field is fixed-size
// so the record encodes with encoding/binary.
type Session struct {
	// Identity.
	ID     ID
	Status Status
	Stage  Stage
	Role   Role

	// Key material.
	Km          [protocol.KmSize]byte
	Kd          [protocol.KdSize]byte
	Ks          [protocol.KsSize]byte
	Rtx         [protocol.RtxSize]byte
	Rrx         [protocol.RrxSize]byte
	Rn          [protocol.RnSize]byte
	Riv         [protocol.RivSize]byte
	L           [protocol.LprimeSize]byte
	DkeyCounter uint64

	// Receiver attributes.
	ReceiverID         protocol.ReceiverID
	Modulus            [protocol.ModulusSize]byte
	Exponent           [protocol.ExponentSize]byte
	ProtocolDescriptor uint8
	Repeater           bool
	TxCaps             protocol.Caps
	RxCaps             protocol.Caps
	PairingUsed        bool

	// Content protection bookkeeping.
	StreamCount     uint8
	ManagedStreams  uint8
	Streams         [protocol.MaxStreams]Stream
	SeqNumM         uint32
	SeqNumV         uint32
	SeqNumVSeen     bool
	SeqNumVRollover bool
	RxInfo          uint16
	Revocation      RevocationStatus
	VprimeAttempts  uint8
	VprimeMismatch  bool
}

// Version returns the negotiated protocol version: the lower of the two
// capability versions.
func (s *Session) Version() protocol.Version {
	v := s.TxCaps.Version()
	if rv := s.RxCaps.Version(); rv < v {
		v = rv
	}
	return v
}

// Zeroize clears the key material.
func (s *Session) Zeroize() {
	crypto.Zeroize(s.Km[:])
	crypto.Zeroize(s.Kd[:])
	crypto.Zeroize(s.Ks[:])
	crypto.Zeroize(s.L[:])
	crypto.Zeroize(s.Riv[:])
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
