package engine

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
	"github.com/backkem/hdcp/pkg/session"
	"github.com/backkem/hdcp/pkg/srm"
)

// createSession allocates a slot and starts the authentication and key
// exchange.
func (e *Engine) createSession(ctx context.Context, p *CreateSessionParams) error {
	if !e.store.Initialized() {
		return ErrNotInitialized
	}
	role := session.Role(p.Role)
	if !role.IsValid() {
		return fmt.Errorf("%w: role %d", ErrInvalidParam, p.Role)
	}
	if p.StreamCount == 0 || int(p.StreamCount) > e.config.MaxStreams {
		return fmt.Errorf("%w: %d streams, max %d", ErrStreamCountInvalid, p.StreamCount, e.config.MaxStreams)
	}
	if e.store.InUse() >= e.store.Capacity() {
		return session.ErrSessionTableFull
	}

	var rtx [protocol.RtxSize]byte
	switch {
	case role == session.RoleReceiver:
		rtx = p.Rtx
	case e.config.KnownAnswers != nil:
		rtx = e.config.KnownAnswers.Rtx
	default:
		if err := e.random(rtx[:]); err != nil {
			return err
		}
	}

	s, err := e.store.Allocate(ctx)
	if err != nil {
		return err
	}
	s.Role = role
	s.StreamCount = p.StreamCount
	s.TxCaps = txCaps(e.versions())
	s.Rtx = rtx
	if err := e.advance(ctx, s, session.StageAkeInit); err != nil {
		if ferr := e.store.Free(ctx, s.ID); ferr != nil && e.log != nil {
			e.log.Warnf("free session %#x after failed create: %v", uint32(s.ID), ferr)
		}
		return err
	}

	p.SessionID = uint32(s.ID)
	p.Rtx = rtx
	p.TxCaps = s.TxCaps
	if e.log != nil {
		e.log.Debugf("session %#x created as %s with %d streams", uint32(s.ID), role, p.StreamCount)
	}
	return nil
}

// rootKey reads the DCP root public key from the key table.
func (e *Engine) rootKey() (srm.RootKey, error) {
	n, err := e.acc.SecretKey(accel.KeyDCPRootModulus)
	if err != nil {
		return srm.RootKey{}, err
	}
	exp, err := e.acc.SecretKey(accel.KeyDCPRootExponent)
	if err != nil {
		return srm.RootKey{}, err
	}
	return srm.RootKey{Modulus: n, Exponent: exp}, nil
}

// roots reads both SRM trust anchors. A missing anchor is left empty; the
// validator rejects SRMs of its scheme.
func (e *Engine) roots() (srm.Roots, error) {
	var roots srm.Roots
	rsaKey, err := e.rootKey()
	if err != nil && !errors.Is(err, accel.ErrKeyNotFound) {
		return roots, err
	}
	roots.RSA = rsaKey

	dsaKey := []*[]byte{&roots.DSA.P, &roots.DSA.Q, &roots.DSA.G, &roots.DSA.Y}
	for i, id := range []accel.KeyID{accel.KeyDCPLegacyP, accel.KeyDCPLegacyQ, accel.KeyDCPLegacyG, accel.KeyDCPLegacyY} {
		v, err := e.acc.SecretKey(id)
		if err != nil && !errors.Is(err, accel.ErrKeyNotFound) {
			return roots, err
		}
		*dsaKey[i] = v
	}
	return roots, nil
}

// verifyCertRx reads the receiver certificate and checks it against the DCP
// root key.
func (e *Engine) verifyCertRx(ctx context.Context, p *VerifyCertRxParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageAkeInit)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if p.CertOffset == 0 {
		return fmt.Errorf("%w: certificate location not set", ErrInvalidParam)
	}
	if err := memory.CheckAligned(p.CertOffset, 0); err != nil {
		return err
	}
	if err := e.checkVersion(s.TxCaps, p.RxCaps); err != nil {
		return err
	}

	buf := make([]byte, protocol.CertSize)
	if err := memory.ReadUnaligned(ctx, e.config.Transport, p.CertOffset, buf); err != nil {
		return err
	}
	cert, err := srm.ParseCertificate(buf)
	if err != nil {
		return err
	}
	root, err := e.rootKey()
	if err != nil {
		return err
	}
	if err := srm.VerifyCertificate(cert, root); err != nil {
		if e.log != nil {
			e.log.Warnf("session %#x: %v", uint32(s.ID), err)
		}
		return err
	}
	if !cert.ReceiverID.Valid() {
		return fmt.Errorf("%w: receiver id %s", srm.ErrCertificateInvalid, cert.ReceiverID)
	}
	if len(e.config.TestReceiverIDs) > 0 && !containsID(e.config.TestReceiverIDs, cert.ReceiverID) {
		return fmt.Errorf("%w: %s", ErrReceiverIDUnknown, cert.ReceiverID)
	}

	s.ReceiverID = cert.ReceiverID
	s.Modulus = cert.Modulus
	s.Exponent = cert.Exponent
	s.ProtocolDescriptor = cert.ProtocolDescriptor
	s.Rrx = p.Rrx
	s.RxCaps = p.RxCaps
	s.Repeater = p.RxCaps.Repeater()
	if err := e.advance(ctx, s, session.StageVerifyCert); err != nil {
		return err
	}

	p.ReceiverID = s.ReceiverID
	p.Repeater = BoolOf(s.Repeater)
	return nil
}

func containsID(ids []protocol.ReceiverID, id protocol.ReceiverID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// receiverKey returns the receiver's public key from the session.
func receiverKey(s *session.Session) (*rsa.PublicKey, error) {
	exp := new(big.Int).SetBytes(s.Exponent[:])
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, fmt.Errorf("%w: receiver exponent %s", srm.ErrCertificateInvalid, exp)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(s.Modulus[:]), E: int(exp.Int64())}, nil
}

// generateEkm draws Km and encrypts it with RSAES-OAEP (SHA-256) under the
// receiver's public key.
func (e *Engine) generateEkm(ctx context.Context, p *GenerateEkmParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageVerifyCert)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	if e.config.KnownAnswers != nil {
		s.Km = e.config.KnownAnswers.Km
	} else if err := e.random(s.Km[:]); err != nil {
		return err
	}

	pub, err := receiverKey(s)
	if err != nil {
		return err
	}
	ekm, err := rsa.EncryptOAEP(sha256.New(), e.config.Rand, pub, s.Km[:], nil)
	if err != nil {
		return fmt.Errorf("%w: OAEP: %v", srm.ErrCertificateInvalid, err)
	}
	if len(ekm) != protocol.EkmSize {
		return fmt.Errorf("%w: Ekm is %d bytes", srm.ErrCertificateInvalid, len(ekm))
	}

	s.DkeyCounter = 0
	s.PairingUsed = false
	if err := e.advance(ctx, s, session.StageGenerateEkm); err != nil {
		return err
	}
	copy(p.Ekm[:], ekm)
	return nil
}

// verifyHprime derives Kd and compares H with the receiver's H'.
func (e *Engine) verifyHprime(ctx context.Context, p *VerifyHprimeParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageGenerateEkm)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	kd, next, err := protocol.Kd(e.acc, s.Km, s.Rtx, s.Rrx, s.DkeyCounter)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(kd[:])

	h := protocol.H(kd, s.Rtx, s.RxCaps, s.TxCaps, s.ProtocolDescriptor)
	if !crypto.HMACEqual(h[:], p.Hprime[:]) {
		if e.log != nil {
			e.log.Warnf("session %#x: H' mismatch", uint32(s.ID))
		}
		return ErrHprimeMismatch
	}

	s.Kd = kd
	s.DkeyCounter = next
	return e.advance(ctx, s, session.StageVerifyHprime)
}

// pairingAEAD returns AES-GCM under the accelerator's pairing key.
func (e *Engine) pairingAEAD() (cipher.AEAD, error) {
	key, err := e.acc.SecretKey(accel.KeyPairing)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)
	if len(key) != crypto.AESKeySize {
		return nil, fmt.Errorf("%w: pairing key is %d bytes", accel.ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encryptPairingInfo seals Km for the receiver so a later session can skip
// the RSA exchange. The session does not change stage.
func (e *Engine) encryptPairingInfo(ctx context.Context, p *EncryptPairingInfoParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageVerifyHprime)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	aead, err := e.pairingAEAD()
	if err != nil {
		return err
	}
	nonce := p.PairingInfo[:aead.NonceSize()]
	if _, err := io.ReadFull(e.config.Rand, nonce); err != nil {
		return err
	}
	aead.Seal(p.PairingInfo[:len(nonce)], nonce, s.Km[:], s.ReceiverID[:])
	p.ReceiverID = s.ReceiverID
	return nil
}

// decryptPairingInfo restores Km from pairing info sealed for the session's
// receiver, replacing GenerateEkm.
func (e *Engine) decryptPairingInfo(ctx context.Context, p *DecryptPairingInfoParams) error {
	s, err := e.loadAt(ctx, p.SessionID, session.StageVerifyCert)
	if err != nil {
		return err
	}
	defer s.Zeroize()

	aead, err := e.pairingAEAD()
	if err != nil {
		return err
	}
	n := aead.NonceSize()
	km, err := aead.Open(nil, p.PairingInfo[:n], p.PairingInfo[n:], s.ReceiverID[:])
	if err != nil {
		if e.log != nil {
			e.log.Warnf("session %#x: pairing info rejected for %s", uint32(s.ID), s.ReceiverID)
		}
		return ErrPairingInfoInvalid
	}
	defer crypto.Zeroize(km)

	copy(s.Km[:], km)
	s.DkeyCounter = 0
	s.PairingUsed = true
	return e.advance(ctx, s, session.StageGenerateEkm)
}
