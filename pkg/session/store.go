package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/memory"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Transport reaches the external scratch region. Required.
	Transport memory.Transport

	// Base is the offset of the scratch region. Must be RegionAlign aligned.
	Base uint64

	// MaxSessions is the number of slots, 1..MaxSlots.
	MaxSessions int

	// Rand supplies store seeds and per-write IVs. Required.
	Rand io.Reader

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

// Globals are the engine-wide values recorded at Init.
type Globals struct {
	Versions uint8
	ChipID   [16]byte
}

// Store persists sessions in the scratch region. It is not safe for
// concurrent use; the engine serializes access.
type Store struct {
	t    memory.Transport
	base uint64
	max  int
	rand io.Reader
	log  logging.LeveledLogger

	keys   *crypto.StoreKeys
	header Header
}

// NewStore creates a store. Call Init or Attach before use.
func NewStore(config StoreConfig) (*Store, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("session: transport is required")
	}
	if config.Rand == nil {
		return nil, fmt.Errorf("session: random source is required")
	}
	if config.MaxSessions <= 0 || config.MaxSessions > MaxSlots {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, config.MaxSessions)
	}
	if config.Base%RegionAlign != 0 {
		return nil, fmt.Errorf("%w: base %#x", memory.ErrMisaligned, config.Base)
	}
	s := &Store{
		t:    config.Transport,
		base: config.Base,
		max:  config.MaxSessions,
		rand: config.Rand,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session-store")
	}
	return s, nil
}

func (s *Store) keysOffset() uint64   { return s.base }
func (s *Store) headerOffset() uint64 { return s.base + KeysBlockSize }
func (s *Store) slotOffset(slot int) uint64 {
	return s.base + KeysBlockSize + HeaderBlockSize + uint64(slot)*uint64(SlotSize)
}

// Initialized reports whether Init or Attach succeeded.
func (s *Store) Initialized() bool {
	return s.keys != nil && s.header.InitDone()
}

// Capacity returns the number of slots.
func (s *Store) Capacity() int {
	return s.max
}

// InUse returns the number of occupied slots.
func (s *Store) InUse() int {
	return int(s.header.InUse)
}

// Header returns a copy of the global state.
func (s *Store) Header() Header {
	return s.header
}

// Init formats the scratch region: a new seed (so records written under the
// previous one no longer verify), zeroed slots and a fresh header.
func (s *Store) Init(ctx context.Context, chipSecret []byte, g Globals) error {
	var kb keysBlock
	kb.Magic = headerMagic
	if _, err := io.ReadFull(s.rand, kb.Seed[:]); err != nil {
		return fmt.Errorf("session: seed: %w", err)
	}
	keys, err := crypto.DeriveStoreKeys(chipSecret, kb.Seed[:])
	if err != nil {
		return err
	}

	if err := s.t.Write(ctx, s.keysOffset(), encode(&kb, KeysBlockSize)); err != nil {
		keys.Zeroize()
		return err
	}
	zero := make([]byte, SlotSize)
	for slot := 0; slot < s.max; slot++ {
		if err := s.t.Write(ctx, s.slotOffset(slot), zero); err != nil {
			keys.Zeroize()
			return err
		}
	}

	h := Header{
		Magic:         headerMagic,
		FormatVersion: FormatVersion,
		Flags:         FlagInitDone,
		MaxSessions:   uint16(s.max),
		SeqCounter:    0,
		Versions:      g.Versions,
		ChipID:        g.ChipID,
	}
	if s.keys != nil {
		s.keys.Zeroize()
	}
	s.keys = keys
	if err := s.writeHeader(ctx, h); err != nil {
		s.keys.Zeroize()
		s.keys = nil
		return err
	}
	if s.log != nil {
		s.log.Infof("scratch initialized: %d slots of %d bytes at %#x", s.max, SlotSize, s.base)
	}
	return nil
}

// Attach loads an existing scratch region, for example after an engine
// restart.
func (s *Store) Attach(ctx context.Context, chipSecret []byte) error {
	buf := make([]byte, KeysBlockSize)
	if err := s.t.Read(ctx, s.keysOffset(), buf); err != nil {
		return err
	}
	var kb keysBlock
	if err := decode(buf, &kb); err != nil {
		return err
	}
	if kb.Magic != headerMagic {
		return fmt.Errorf("%w: keys block magic %q", ErrNotInitialized, kb.Magic[:])
	}
	keys, err := crypto.DeriveStoreKeys(chipSecret, kb.Seed[:])
	if err != nil {
		return err
	}

	h, err := s.readHeader(ctx, keys)
	if err != nil {
		keys.Zeroize()
		return err
	}
	switch {
	case h.Magic != headerMagic || h.FormatVersion != FormatVersion:
		keys.Zeroize()
		return fmt.Errorf("%w: format %d", ErrFormat, h.FormatVersion)
	case int(h.MaxSessions) != s.max:
		keys.Zeroize()
		return fmt.Errorf("%w: scratch has %d slots, configured %d", ErrFormat, h.MaxSessions, s.max)
	case !h.InitDone():
		keys.Zeroize()
		return ErrNotInitialized
	case bits.OnesCount64(h.SlotMask) != int(h.InUse):
		keys.Zeroize()
		return fmt.Errorf("%w: in-use count %d disagrees with slot mask", ErrIntegrity, h.InUse)
	}

	if s.keys != nil {
		s.keys.Zeroize()
	}
	s.keys = keys
	s.header = h
	if s.log != nil {
		s.log.Infof("scratch attached: %d of %d slots in use", h.InUse, s.max)
	}
	return nil
}

func headerMAC(keys *crypto.StoreKeys, body []byte) [macSize]byte {
	m := crypto.NewHMACSHA256(keys.MAC[:])
	m.Write([]byte("header"))
	m.Write(body)
	var out [macSize]byte
	copy(out[:], m.Sum(nil))
	return out
}

func (s *Store) writeHeader(ctx context.Context, h Header) error {
	block := encode(&h, HeaderBlockSize)
	mac := headerMAC(s.keys, block[:HeaderBlockSize-macSize])
	copy(block[HeaderBlockSize-macSize:], mac[:])
	if err := s.t.Write(ctx, s.headerOffset(), block); err != nil {
		return err
	}
	s.header = h
	return nil
}

func (s *Store) readHeader(ctx context.Context, keys *crypto.StoreKeys) (Header, error) {
	block := make([]byte, HeaderBlockSize)
	if err := s.t.Read(ctx, s.headerOffset(), block); err != nil {
		return Header{}, err
	}
	mac := headerMAC(keys, block[:HeaderBlockSize-macSize])
	if !crypto.HMACEqual(mac[:], block[HeaderBlockSize-macSize:]) {
		if s.log != nil {
			s.log.Error("scratch header failed integrity check")
		}
		return Header{}, fmt.Errorf("%w: header", ErrIntegrity)
	}
	var h Header
	if err := decode(block, &h); err != nil {
		return Header{}, err
	}
	return h, nil
}

func (s *Store) checkID(id ID) error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	if id.Slot() >= s.max || id.Seq() == 0 {
		return fmt.Errorf("%w: %#x", ErrInvalidSessionID, uint32(id))
	}
	if !s.header.slotUsed(id.Slot()) {
		return fmt.Errorf("%w: %#x", ErrSessionNotFound, uint32(id))
	}
	return nil
}

// Allocate claims the lowest free slot, assigns a fresh id and persists an
// empty InUse session in it.
func (s *Store) Allocate(ctx context.Context) (*Session, error) {
	if !s.Initialized() {
		return nil, ErrNotInitialized
	}
	free := ^s.header.SlotMask
	if s.max < MaxSlots {
		free &= (1 << uint(s.max)) - 1
	}
	if free == 0 {
		return nil, ErrSessionTableFull
	}
	slot := bits.TrailingZeros64(free)

	h := s.header
	h.SeqCounter = (h.SeqCounter + 1) & 0xFFFFFF
	if h.SeqCounter == 0 {
		h.SeqCounter = 1
	}
	h.SlotMask |= 1 << uint(slot)
	h.InUse++

	sess := &Session{ID: MakeID(h.SeqCounter, slot), Status: StatusInUse, Stage: StageNone}
	if err := s.writeSlot(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.writeHeader(ctx, h); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Debugf("allocated session %#x in slot %d", uint32(sess.ID), slot)
	}
	return sess, nil
}

// Read loads and verifies a session.
func (s *Store) Read(ctx context.Context, id ID) (*Session, error) {
	if err := s.checkID(id); err != nil {
		return nil, err
	}
	slot := make([]byte, SlotSize)
	if err := s.t.Read(ctx, s.slotOffset(id.Slot()), slot); err != nil {
		return nil, err
	}

	iv := slot[:ivSize]
	body := slot[ivSize : ivSize+bodySize]
	mac := slotMAC(s.keys, id.Slot(), iv, body)
	if !crypto.HMACEqual(mac[:], slot[ivSize+bodySize:ivSize+bodySize+macSize]) {
		if s.log != nil {
			s.log.Errorf("session %#x failed integrity check", uint32(id))
		}
		return nil, fmt.Errorf("%w: slot %d", ErrIntegrity, id.Slot())
	}

	var ctr [crypto.AESBlockSize]byte
	copy(ctr[:], iv)
	plain := make([]byte, bodySize)
	crypto.AESCTRXOR(s.keys.Enc[:crypto.AESKeySize], ctr, plain, body)
	defer crypto.Zeroize(plain)

	sess := &Session{}
	if err := sess.UnmarshalBinary(plain); err != nil {
		return nil, err
	}
	if sess.ID != id {
		return nil, fmt.Errorf("%w: slot %d holds %#x, not %#x", ErrStaleSession, id.Slot(), uint32(sess.ID), uint32(id))
	}
	return sess, nil
}

// Write encrypts, signs and persists a session.
func (s *Store) Write(ctx context.Context, sess *Session) error {
	if err := s.checkID(sess.ID); err != nil {
		return err
	}
	return s.writeSlot(ctx, sess)
}

func slotMAC(keys *crypto.StoreKeys, slot int, iv, body []byte) [macSize]byte {
	m := crypto.NewHMACSHA256(keys.MAC[:])
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(slot))
	m.Write([]byte("slot"))
	m.Write(idx[:])
	m.Write(iv)
	m.Write(body)
	var out [macSize]byte
	copy(out[:], m.Sum(nil))
	return out
}

func (s *Store) writeSlot(ctx context.Context, sess *Session) error {
	plain := make([]byte, bodySize)
	copy(plain, encode(sess, recordSize))
	defer crypto.Zeroize(plain)

	slot := make([]byte, SlotSize)
	iv := slot[:ivSize]
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return fmt.Errorf("session: iv: %w", err)
	}
	var ctr [crypto.AESBlockSize]byte
	copy(ctr[:], iv)
	body := slot[ivSize : ivSize+bodySize]
	crypto.AESCTRXOR(s.keys.Enc[:crypto.AESKeySize], ctr, body, plain)

	mac := slotMAC(s.keys, sess.ID.Slot(), iv, body)
	copy(slot[ivSize+bodySize:], mac[:])
	return s.t.Write(ctx, s.slotOffset(sess.ID.Slot()), slot)
}

// Free zeroes a session's slot and releases it.
func (s *Store) Free(ctx context.Context, id ID) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	if err := s.t.Write(ctx, s.slotOffset(id.Slot()), make([]byte, SlotSize)); err != nil {
		return err
	}
	h := s.header
	h.SlotMask &^= 1 << uint(id.Slot())
	h.InUse--
	if err := s.writeHeader(ctx, h); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debugf("freed session %#x", uint32(id))
	}
	return nil
}

// Sessions reads every occupied slot. A slot that fails to read is reported
// through the returned error after the remaining slots were read.
func (s *Store) Sessions(ctx context.Context) ([]*Session, error) {
	if !s.Initialized() {
		return nil, ErrNotInitialized
	}
	var out []*Session
	var firstErr error
	for slot := 0; slot < s.max; slot++ {
		if !s.header.slotUsed(slot) {
			continue
		}
		id, err := s.slotID(ctx, slot)
		if err == nil {
			var sess *Session
			if sess, err = s.Read(ctx, id); err == nil {
				out = append(out, sess)
				continue
			}
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return out, firstErr
}

// slotID decrypts just enough of a slot to learn its session id.
func (s *Store) slotID(ctx context.Context, slot int) (ID, error) {
	buf := make([]byte, ivSize+crypto.AESBlockSize)
	if err := s.t.Read(ctx, s.slotOffset(slot), buf); err != nil {
		return 0, err
	}
	var ctr [crypto.AESBlockSize]byte
	copy(ctr[:], buf[:ivSize])
	first := make([]byte, crypto.AESBlockSize)
	crypto.AESCTRXOR(s.keys.Enc[:crypto.AESKeySize], ctr, first, buf[ivSize:])
	return ID(binary.BigEndian.Uint32(first)), nil
}

// NextStreamCounters reserves n consecutive values of the global stream
// counter and returns the first.
func (s *Store) NextStreamCounters(ctx context.Context, n int) (uint32, error) {
	if !s.Initialized() {
		return 0, ErrNotInitialized
	}
	h := s.header
	first := h.StreamCounter
	if uint64(first)+uint64(n) > 0xFFFFFFFF {
		return 0, ErrStreamCounterExhausted
	}
	h.StreamCounter += uint32(n)
	if err := s.writeHeader(ctx, h); err != nil {
		return 0, err
	}
	return first, nil
}
