package srm

import (
	stdcrypto "crypto"
	"crypto/dsa" //nolint:staticcheck // legacy SRMs are DSA-signed
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
)

// Authority is a stand-in for the DCP licensing authority. It owns the RSA
// and DSA signing keys, issues receiver certificates and builds signed SRMs.
// Tests and the developer binary use it in place of production trust anchors.
type Authority struct {
	rsaKey *rsa.PrivateKey
	dsaKey *dsa.PrivateKey
}

// NewAuthority generates a 3072-bit RSA root and a DSA L1024N160 key.
func NewAuthority(rand io.Reader) (*Authority, error) {
	rk, err := rsa.GenerateKey(rand, protocol.RootModulusSize*8)
	if err != nil {
		return nil, fmt.Errorf("generate RSA root: %w", err)
	}
	dk := new(dsa.PrivateKey)
	if err := dsa.GenerateParameters(&dk.Parameters, rand, dsa.L1024N160); err != nil {
		return nil, fmt.Errorf("generate DSA parameters: %w", err)
	}
	if err := dsa.GenerateKey(dk, rand); err != nil {
		return nil, fmt.Errorf("generate DSA key: %w", err)
	}
	return &Authority{rsaKey: rk, dsaKey: dk}, nil
}

// Roots returns the public trust anchors.
func (a *Authority) Roots() Roots {
	return Roots{
		RSA: RootKey{
			Modulus:  a.rsaKey.N.FillBytes(make([]byte, protocol.RootModulusSize)),
			Exponent: big.NewInt(int64(a.rsaKey.E)).Bytes(),
		},
		DSA: DSAKey{
			P: a.dsaKey.P.Bytes(),
			Q: a.dsaKey.Q.Bytes(),
			G: a.dsaKey.G.Bytes(),
			Y: a.dsaKey.Y.Bytes(),
		},
	}
}

// IssueCertificate signs a receiver certificate for a 1024-bit public key.
func (a *Authority) IssueCertificate(rand io.Reader, id protocol.ReceiverID, pub *rsa.PublicKey, descriptor uint8) (*Certificate, error) {
	if pub.N.BitLen() != protocol.ModulusSize*8 {
		return nil, fmt.Errorf("%w: receiver modulus is %d bits", ErrCertificateMalformed, pub.N.BitLen())
	}
	c := &Certificate{ReceiverID: id, ProtocolDescriptor: descriptor}
	pub.N.FillBytes(c.Modulus[:])
	big.NewInt(int64(pub.E)).FillBytes(c.Exponent[:])

	digest := crypto.SHA256(c.Body())
	sig, err := rsa.SignPKCS1v15(rand, a.rsaKey, stdcrypto.SHA256, digest[:])
	if err != nil {
		return nil, err
	}
	copy(c.Signature[:], sig)
	return c, nil
}

// BuildSRM builds a signed SRM with one generation per id list.
func (a *Authority) BuildSRM(rand io.Reader, scheme Scheme, version uint16, generations [][]protocol.ReceiverID) ([]byte, error) {
	h := Header{Scheme: scheme, Version: version, Generations: uint8(len(generations)), ID: legacyFormatID}
	if scheme == SchemeModern {
		h.ID = modernFormatID
	}
	length := HeaderSize - lengthOrigin
	for _, ids := range generations {
		length += h.countSize() + len(ids)*protocol.ReceiverIDSize + h.sigSize()
	}
	h.Length = uint32(length)

	hdr := PackHeader(h)
	out := append([]byte(nil), hdr[:]...)
	for _, ids := range generations {
		switch scheme {
		case SchemeModern:
			out = binary.BigEndian.AppendUint32(out, uint32(len(ids))&modernCountMask)
		default:
			out = append(out, byte(len(ids))&legacyCountMask)
		}
		for _, id := range ids {
			out = append(out, id[:]...)
		}
		sig, err := a.sign(rand, scheme, out)
		if err != nil {
			return nil, err
		}
		out = append(out, sig...)
	}
	return out, nil
}

func (a *Authority) sign(rand io.Reader, scheme Scheme, msg []byte) ([]byte, error) {
	if scheme == SchemeModern {
		digest := crypto.SHA256(msg)
		return rsa.SignPKCS1v15(rand, a.rsaKey, stdcrypto.SHA256, digest[:])
	}
	digest := crypto.SHA1(msg)
	r, s, err := dsa.Sign(rand, a.dsaKey, digest[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, legacySigSize)
	r.FillBytes(sig[:DSASize])
	s.FillBytes(sig[DSASize:])
	return sig, nil
}

// NewReceiverID draws a random receiver id with exactly twenty bits set.
func NewReceiverID(rand io.Reader) (protocol.ReceiverID, error) {
	var bits [protocol.ReceiverIDSize * 8]bool
	for i := 0; i < 20; i++ {
		bits[i] = true
	}
	var rnd [len(bits)]byte
	if _, err := io.ReadFull(rand, rnd[:]); err != nil {
		return protocol.ReceiverID{}, err
	}
	for i := len(bits) - 1; i > 0; i-- {
		j := int(rnd[i]) % (i + 1)
		bits[i], bits[j] = bits[j], bits[i]
	}
	var id protocol.ReceiverID
	for i, b := range bits {
		if b {
			id[i/8] |= 0x80 >> (i % 8)
		}
	}
	return id, nil
}
