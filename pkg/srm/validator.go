package srm

import (
	"context"
	"fmt"
	"hash"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
)

// ChunkSize is the working-buffer size used to stream an SRM.
const ChunkSize = 256

// Roots holds the trust anchors for both signature schemes.
type Roots struct {
	RSA RootKey
	DSA DSAKey
}

// Result describes a validated SRM.
type Result struct {
	Scheme      Scheme
	Version     uint16
	Generations int
	Devices     int

	// Revoked is set when a candidate id appears in any generation.
	Revoked bool

	// RevokedID is the first candidate found.
	RevokedID protocol.ReceiverID
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validator checks SRMs read through a memory transport.
type Validator struct {
	log logging.LeveledLogger
}

// NewValidator creates a Validator.
func NewValidator(config ValidatorConfig) *Validator {
	v := &Validator{}
	if config.LoggerFactory != nil {
		v.log = config.LoggerFactory.NewLogger("srm")
	}
	return v
}

// reader streams the SRM in aligned chunks and hashes every byte it hands out.
type reader struct {
	ctx   context.Context
	t     memory.Transport
	base  uint64
	limit int

	buf    [ChunkSize]byte
	bufOff int // SRM offset of buf[0]
	bufLen int
	pos    int

	h hash.Hash
}

func (r *reader) fill() error {
	start := r.bufOff + r.bufLen
	remaining := r.limit - start
	if remaining <= 0 {
		return fmt.Errorf("%w: read past end of buffer", ErrMalformed)
	}
	n := min(ChunkSize, memory.RoundUp(remaining))
	if err := r.t.Read(r.ctx, r.base+uint64(start), r.buf[:n]); err != nil {
		return err
	}
	r.bufOff = start
	r.bufLen = n
	return nil
}

// read copies len(dst) bytes from the stream.
func (r *reader) read(dst []byte) error {
	for len(dst) > 0 {
		if r.pos == r.bufOff+r.bufLen {
			if err := r.fill(); err != nil {
				return err
			}
		}
		i := r.pos - r.bufOff
		n := copy(dst, r.buf[i:r.bufLen])
		if r.h != nil {
			r.h.Write(dst[:n])
		}
		r.pos += n
		dst = dst[n:]
	}
	return nil
}

// Validate streams the SRM at offset through the validator. length is the
// number of bytes the caller placed at offset; the transport window read is
// length rounded up to memory.Align. Candidates are matched against every
// generation.
//
// A Result is returned only when every generation signature verifies. A bad
// signature yields ErrSignatureInvalid even if a candidate was already
// matched, and transport failures are returned as is.
func (v *Validator) Validate(ctx context.Context, t memory.Transport, offset uint64, length int, roots Roots, candidates []protocol.ReceiverID) (Result, error) {
	if err := memory.CheckAligned(offset, 0); err != nil {
		return Result{}, err
	}
	if length < HeaderSize {
		return Result{}, fmt.Errorf("%w: length %d below header size", ErrMalformed, length)
	}

	r := &reader{ctx: ctx, t: t, base: offset, limit: length}

	var hdr [HeaderSize]byte
	if err := r.read(hdr[:]); err != nil {
		return Result{}, err
	}
	h, err := UnpackHeader(hdr[:], length)
	if err != nil {
		return Result{}, err
	}
	switch h.Scheme {
	case SchemeModern:
		if err := roots.RSA.check(); err != nil {
			return Result{}, err
		}
		r.h = crypto.NewSHA256()
	default:
		if err := roots.DSA.check(); err != nil {
			return Result{}, err
		}
		r.h = crypto.NewSHA1()
	}
	r.h.Write(hdr[:])
	r.limit = h.Size()

	res := Result{Scheme: h.Scheme, Version: h.Version, Generations: int(h.Generations)}

	count := make([]byte, h.countSize())
	sig := make([]byte, h.sigSize())
	var id protocol.ReceiverID
	for gen := 0; gen < int(h.Generations); gen++ {
		if err := r.read(count); err != nil {
			return Result{}, err
		}
		n := h.deviceCount(count)
		need := n*protocol.ReceiverIDSize + len(sig)
		if r.pos+need > r.limit {
			return Result{}, fmt.Errorf("%w: generation %d with %d devices overruns length", ErrMalformed, gen+1, n)
		}
		for i := 0; i < n; i++ {
			if err := r.read(id[:]); err != nil {
				return Result{}, err
			}
			if !res.Revoked && contains(candidates, id) {
				res.Revoked = true
				res.RevokedID = id
			}
		}
		res.Devices += n

		digest := r.h.Sum(nil)
		if err := r.read(sig); err != nil {
			return Result{}, err
		}
		if err := verifyGeneration(h.Scheme, digest, sig, roots); err != nil {
			if v.log != nil {
				v.log.Warnf("SRM version %d generation %d: signature invalid", h.Version, gen+1)
			}
			return Result{}, fmt.Errorf("%w: generation %d: %v", ErrSignatureInvalid, gen+1, err)
		}
	}
	if r.pos != r.limit {
		return Result{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.limit-r.pos)
	}

	if v.log != nil {
		v.log.Debugf("SRM version %d valid: %d generations, %d devices", h.Version, h.Generations, res.Devices)
		if res.Revoked {
			v.log.Warnf("receiver %s is revoked by SRM version %d", res.RevokedID, h.Version)
		}
	}
	return res, nil
}

func verifyGeneration(s Scheme, digest, sig []byte, roots Roots) error {
	if s == SchemeModern {
		return verifyRSADigest(digest, sig, roots.RSA)
	}
	return VerifyDSA(digest, sig[:DSASize], sig[DSASize:], roots.DSA)
}

func contains(ids []protocol.ReceiverID, id protocol.ReceiverID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}
