package protocol

import (
	"encoding/binary"

	"github.com/backkem/hdcp/pkg/crypto"
)

// BlockCipher encrypts one AES-128 block. accel.Accelerator satisfies it.
type BlockCipher interface {
	EncryptBlock(key, dst, src []byte) error
}

// Dkey derives one key-derivation block:
//
//	dkey_i = AES_{Km ⊕ (0^64 ‖ Rn)}(Rtx ‖ (Rrx ⊕ ctr))
//
// Rn is all zero for dkey_0 and dkey_1.
func Dkey(c BlockCipher, km [KmSize]byte, rn [RnSize]byte, rtx [RtxSize]byte, rrx [RrxSize]byte, ctr uint64) ([DkeySize]byte, error) {
	var out [DkeySize]byte

	key := km
	crypto.XORTail(key[:], rn[:])
	defer crypto.Zeroize(key[:])

	var in [16]byte
	copy(in[:8], rtx[:])
	binary.BigEndian.PutUint64(in[8:], binary.BigEndian.Uint64(rrx[:])^ctr)

	if err := c.EncryptBlock(key[:], out[:], in[:]); err != nil {
		return out, err
	}
	return out, nil
}

// Kd derives Kd = dkey_ctr ‖ dkey_ctr+1 and returns the next counter value.
func Kd(c BlockCipher, km [KmSize]byte, rtx [RtxSize]byte, rrx [RrxSize]byte, ctr uint64) (kd [KdSize]byte, next uint64, err error) {
	var zeroRn [RnSize]byte

	d0, err := Dkey(c, km, zeroRn, rtx, rrx, ctr)
	if err != nil {
		return kd, ctr, err
	}
	d1, err := Dkey(c, km, zeroRn, rtx, rrx, ctr+1)
	if err != nil {
		return kd, ctr, err
	}
	copy(kd[:16], d0[:])
	copy(kd[16:], d1[:])
	crypto.Zeroize(d0[:])
	crypto.Zeroize(d1[:])
	return kd, ctr + 2, nil
}

// H computes H = HMAC-SHA256(Kd, Rtx ‖ RxCaps ‖ TxCaps) for protocol
// descriptor 1 and HMAC-SHA256(Kd, Rtx) otherwise.
func H(kd [KdSize]byte, rtx [RtxSize]byte, rxCaps, txCaps Caps, descriptor uint8) [HprimeSize]byte {
	h := crypto.NewHMACSHA256(kd[:])
	h.Write(rtx[:])
	if descriptor == 1 {
		h.Write(rxCaps[:])
		h.Write(txCaps[:])
	}
	var out [HprimeSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// L computes L = HMAC-SHA256(Kd ⊕ (0^192 ‖ Rrx), Rn).
func L(kd [KdSize]byte, rrx [RrxSize]byte, rn [RnSize]byte) [LprimeSize]byte {
	key := kd
	crypto.XORTail(key[:], rrx[:])
	defer crypto.Zeroize(key[:])
	return crypto.HMACSHA256(key[:], rn[:])
}

// EKs computes eKs = Ks ⊕ (dkey_2 ⊕ (0^64 ‖ Rrx)).
func EKs(ks [KsSize]byte, dkey2 [DkeySize]byte, rrx [RrxSize]byte) [KsSize]byte {
	mask := dkey2
	crypto.XORTail(mask[:], rrx[:])
	var out [KsSize]byte
	crypto.XOR(out[:], ks[:], mask[:])
	crypto.Zeroize(mask[:])
	return out
}

// V computes the repeater topology MAC. For 2.1 and later:
//
//	V = HMAC-SHA256(Kd, ReceiverIDList ‖ RxInfo ‖ seq_num_V)
//
// For 2.0 the RxInfo word and sequence number are replaced by one byte each of
// DEPTH, DEVICE_COUNT, MAX_DEVS_EXCEEDED and MAX_CASCADE_EXCEEDED.
func V(kd [KdSize]byte, ids []ReceiverID, info RxInfo, seqNumV uint32, version Version) [32]byte {
	h := crypto.NewHMACSHA256(kd[:])
	for _, id := range ids {
		h.Write(id[:])
	}
	if version.UsesRxInfo() {
		w := info.Pack()
		var tail [2 + SeqNumSize]byte
		tail[0], tail[1] = byte(w>>8), byte(w)
		PutSeqNum(tail[2:], seqNumV)
		h.Write(tail[:])
	} else {
		h.Write([]byte{
			info.Depth,
			info.DeviceCount,
			byte(bit(info.MaxDevsExceeded, 0)),
			byte(bit(info.MaxCascadeExceeded, 0)),
		})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// M computes M = HMAC-SHA256(SHA256(Kd), entries ‖ seq_num_M).
func M(kd [KdSize]byte, entries []StreamEntry, seqNumM uint32) [MprimeSize]byte {
	key := crypto.SHA256(kd[:])
	defer crypto.Zeroize(key[:])

	msg := make([]byte, 0, len(entries)*StreamEntrySize+SeqNumSize)
	for _, e := range entries {
		msg = e.Append(msg)
	}
	var seq [SeqNumSize]byte
	PutSeqNum(seq[:], seqNumM)
	msg = append(msg, seq[:]...)
	return crypto.HMACSHA256(key[:], msg)
}
