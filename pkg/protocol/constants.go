// Package protocol holds the HDCP 2.x definitions shared by the engine
// components: field sizes, versions, capability and RxInfo bit packing,
// receiver ids, stream entries and the key-derivation functions that turn
// the handshake values into Kd, H, L, eKs, V and M.
//
// All multi-byte values are big-endian on the wire.
package protocol

// Field sizes in bytes.
const (
	RtxSize        = 8
	RrxSize        = 8
	RnSize         = 8
	RivSize        = 8
	KmSize         = 16
	KsSize         = 16
	KdSize         = 32
	DkeySize       = 16
	ReceiverIDSize = 5
	CapsSize       = 3

	// HprimeSize is the size of H and H'.
	HprimeSize = 32

	// LprimeSize is the size of L and L'.
	LprimeSize = 32

	// LprimeHalfSize is the half of L exchanged when the RTT challenge is
	// pre-computed.
	LprimeHalfSize = 16

	// VprimeSize is the size of V', the most-significant half of V.
	VprimeSize = 16

	// MprimeSize is the size of M and M'.
	MprimeSize = 32

	// EkmSize is the size of Km encrypted under the 1024-bit receiver key.
	EkmSize = 128

	// EkhKmSize is the size of sealed pairing info (nonce, ciphertext, tag).
	EkhKmSize = 12 + KmSize + 16
)

// Receiver public key and certificate sizes.
const (
	ModulusSize  = 128
	ExponentSize = 3

	// RootModulusSize is the size of the 3072-bit DCP root modulus.
	RootModulusSize = 384

	// RootSignatureSize is the size of a DCP root signature.
	RootSignatureSize = 384

	// CertBodySize is the size of the signed part of a receiver certificate.
	CertBodySize = ReceiverIDSize + ModulusSize + ExponentSize + 2

	// CertSize is the size of a receiver certificate.
	CertSize = CertBodySize + RootSignatureSize
)

// Protocol limits.
const (
	// MaxStreams is the maximum number of content streams per receiver.
	MaxStreams = 16

	// MaxSeqNum is the largest 24-bit sequence number.
	MaxSeqNum = 0xFFFFFF

	// MaxDepth is the maximum repeater cascade depth.
	MaxDepth = 4

	// MaxDeviceCount is the maximum number of downstream devices.
	MaxDeviceCount = 31

	// MaxVprimeAttempts caps V' verification attempts per session.
	MaxVprimeAttempts = 3

	// SeqNumSize is the wire size of seq_num_V and seq_num_M.
	SeqNumSize = 3
)

// PutSeqNum writes a 24-bit sequence number into b[0:3].
func PutSeqNum(b []byte, v uint32) {
	_ = b[2]
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// SeqNum reads a 24-bit sequence number from b[0:3].
func SeqNum(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
