// Package srm validates what arrives from outside the trust boundary: receiver
// certificates signed by the DCP root and System Renewability Messages, the
// signed multi-generation revocation lists.
//
// Certificates are checked with RSASSA-PKCS1-v1_5/SHA-256 against the 3072-bit
// DCP root key. SRMs are streamed from the memory transport in aligned chunks;
// each generation's device ids are matched against the caller's candidates
// while they are hashed, and each generation signature is verified before the
// next generation is read.
package srm

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/hdcp/pkg/protocol"
)

// Certificate is a parsed receiver certificate:
//
//	ReceiverID(5) ‖ n(128) ‖ e(3) ‖ descriptor(4 bits) reserved(12 bits) ‖ signature(384)
type Certificate struct {
	ReceiverID         protocol.ReceiverID
	Modulus            [protocol.ModulusSize]byte
	Exponent           [protocol.ExponentSize]byte
	ProtocolDescriptor uint8
	Reserved           uint16
	Signature          [protocol.RootSignatureSize]byte
}

// ParseCertificate decodes a receiver certificate.
func ParseCertificate(b []byte) (*Certificate, error) {
	if len(b) != protocol.CertSize {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrCertificateMalformed, len(b), protocol.CertSize)
	}

	c := &Certificate{}
	off := 0
	off += copy(c.ReceiverID[:], b[off:])
	off += copy(c.Modulus[:], b[off:])
	off += copy(c.Exponent[:], b[off:])
	w := binary.BigEndian.Uint16(b[off:])
	off += 2
	c.ProtocolDescriptor = uint8(w >> 12)
	c.Reserved = w & 0x0FFF
	copy(c.Signature[:], b[off:])

	if c.ProtocolDescriptor > 1 {
		return nil, fmt.Errorf("%w: protocol descriptor %d", ErrCertificateMalformed, c.ProtocolDescriptor)
	}
	return c, nil
}

// Body returns the signed part of the certificate.
func (c *Certificate) Body() []byte {
	b := make([]byte, 0, protocol.CertBodySize)
	b = append(b, c.ReceiverID[:]...)
	b = append(b, c.Modulus[:]...)
	b = append(b, c.Exponent[:]...)
	return binary.BigEndian.AppendUint16(b, uint16(c.ProtocolDescriptor&0xF)<<12|c.Reserved&0x0FFF)
}

// Marshal encodes the certificate.
func (c *Certificate) Marshal() []byte {
	return append(c.Body(), c.Signature[:]...)
}

// RootKey is an RSA trust anchor given as big-endian modulus and exponent.
type RootKey struct {
	Modulus  []byte
	Exponent []byte
}

func (k RootKey) check() error {
	if len(k.Modulus) == 0 || len(k.Exponent) == 0 {
		return fmt.Errorf("%w: empty RSA key", ErrRootKey)
	}
	if k.Modulus[0] == 0 {
		return fmt.Errorf("%w: modulus has leading zero", ErrRootKey)
	}
	return nil
}

// VerifyCertificate checks the root signature over the certificate body.
func VerifyCertificate(c *Certificate, root RootKey) error {
	if err := VerifyRSA(c.Body(), c.Signature[:], root); err != nil {
		return fmt.Errorf("%w: receiver %s: %v", ErrCertificateInvalid, c.ReceiverID, err)
	}
	return nil
}
