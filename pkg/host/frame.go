// Package host carries engine method calls between a host driver and an
// Engine over a packet connection.
//
// Each datagram is one frame:
//
//	+--------+--------+-----------------+----------------------+
//	| method | status | length (BE u16) | parameter block      |
//	+--------+--------+-----------------+----------------------+
//
// The parameter block is the method's fixed-layout block in big-endian
// order, padding included. Requests carry status 0. A response echoes the
// method, carries the block as updated by the engine and repeats its
// return code in the status byte. A request that cannot be decoded is
// answered with a header-only frame whose status says why.
package host

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/backkem/hdcp/pkg/engine"
)

// HeaderSize is the size of the frame header.
const HeaderSize = 4

// MaxFrameSize bounds a frame; every parameter block fits.
const MaxFrameSize = 1024

// Header is the decoded frame header.
type Header struct {
	Method engine.Method
	Status engine.Code
	Length uint16
}

// BlockSize returns the wire size of the method's parameter block.
func BlockSize(m engine.Method) (int, error) {
	p, err := engine.NewParams(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %#02x", ErrUnknownMethod, uint8(m))
	}
	return binary.Size(p), nil
}

// EncodeFrame encodes p with the given status byte.
func EncodeFrame(p engine.Params, status engine.Code) ([]byte, error) {
	n := binary.Size(p)
	if n < 0 || HeaderSize+n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s block of %d bytes", ErrFrameLength, p.Method(), n)
	}
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+n))
	buf.Write([]byte{byte(p.Method()), byte(status), byte(n >> 8), byte(n)})
	if err := binary.Write(buf, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeStatus builds a header-only frame.
func encodeStatus(m engine.Method, status engine.Code) []byte {
	return []byte{byte(m), byte(status), 0, 0}
}

// DecodeHeader parses the frame header and checks the length field
// against the frame size.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	h := Header{
		Method: engine.Method(b[0]),
		Status: engine.Code(b[1]),
		Length: binary.BigEndian.Uint16(b[2:]),
	}
	if int(h.Length) != len(b)-HeaderSize {
		return h, fmt.Errorf("%w: header says %d, frame holds %d", ErrFrameLength, h.Length, len(b)-HeaderSize)
	}
	return h, nil
}

// DecodeFrame parses a request frame into a new parameter block.
func DecodeFrame(b []byte) (engine.Params, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	p, err := engine.NewParams(h.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %#02x", ErrUnknownMethod, uint8(h.Method))
	}
	if err := decodeBlock(b[HeaderSize:], p); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeBlock fills p from a block of exactly its wire size.
func decodeBlock(block []byte, p engine.Params) error {
	if n := binary.Size(p); len(block) != n {
		return fmt.Errorf("%w: %s block is %d bytes, got %d", ErrFrameLength, p.Method(), n, len(block))
	}
	return binary.Read(bytes.NewReader(block), binary.BigEndian, p)
}
