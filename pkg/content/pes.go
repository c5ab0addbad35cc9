package content

import (
	"encoding/binary"
	"fmt"
)

// PESHeaderSize is the size of the PES private data field.
const PESHeaderSize = 16

// BuildPESHeader packs the stream and input counters into the PES private
// data field: eight big-endian 16-bit words, each ending in a marker bit.
//
//	w0  reserved(15..3)  streamCtr[31:30](2..1)  marker(0)
//	w1  streamCtr[29:15](15..1)                  marker(0)
//	w2  streamCtr[14:0](15..1)                   marker(0)
//	w3  reserved(15..5)  inputCtr[63:60](4..1)   marker(0)
//	w4  inputCtr[59:45](15..1)                   marker(0)
//	w5  inputCtr[44:30](15..1)                   marker(0)
//	w6  inputCtr[29:15](15..1)                   marker(0)
//	w7  inputCtr[14:0](15..1)                    marker(0)
func BuildPESHeader(streamCtr uint32, inputCtr uint64) [PESHeaderSize]byte {
	words := [8]uint16{
		uint16(streamCtr>>30) & 0x3,
		uint16(streamCtr>>15) & 0x7FFF,
		uint16(streamCtr) & 0x7FFF,
		uint16(inputCtr>>60) & 0xF,
		uint16(inputCtr>>45) & 0x7FFF,
		uint16(inputCtr>>30) & 0x7FFF,
		uint16(inputCtr>>15) & 0x7FFF,
		uint16(inputCtr) & 0x7FFF,
	}
	var b [PESHeaderSize]byte
	for i, w := range words {
		binary.BigEndian.PutUint16(b[2*i:], w<<1|1)
	}
	return b
}

// ParsePESHeader unpacks a header built by BuildPESHeader. Reserved bits are
// ignored; a cleared marker bit is an error.
func ParsePESHeader(b []byte) (streamCtr uint32, inputCtr uint64, err error) {
	if len(b) < PESHeaderSize {
		return 0, 0, fmt.Errorf("%w: PES header is %d bytes", ErrInvalidRequest, len(b))
	}
	var f [8]uint64
	for i := range f {
		w := binary.BigEndian.Uint16(b[2*i:])
		if w&1 == 0 {
			return 0, 0, fmt.Errorf("%w: word %d", ErrMarkerBit, i)
		}
		f[i] = uint64(w >> 1)
	}
	streamCtr = uint32(f[0]&0x3)<<30 | uint32(f[1])<<15 | uint32(f[2])
	inputCtr = (f[3]&0xF)<<60 | f[4]<<45 | f[5]<<30 | f[6]<<15 | f[7]
	return streamCtr, inputCtr, nil
}
