// Package memory provides the block-memory transport the engine uses to reach
// the large external store holding certificates, SRMs, content buffers and the
// session scratch region.
//
// Every transfer must start at an offset and cover a length that are both
// multiples of Align. The engine never assumes its inputs satisfy this and
// checks with CheckAligned before touching the transport.
package memory

import (
	"context"
	"fmt"
)

// Align is the required alignment, in bytes, of transfer offsets and lengths.
const Align = 16

// Transport moves aligned blocks between the engine and the external store.
// Implementations may block. Failures are wrapped in ErrTransport.
type Transport interface {
	// Read fills buf from the store starting at offset.
	Read(ctx context.Context, offset uint64, buf []byte) error

	// Write copies buf to the store starting at offset.
	Write(ctx context.Context, offset uint64, buf []byte) error
}

// CheckAligned returns ErrMisaligned unless offset and n are both multiples
// of Align.
func CheckAligned(offset uint64, n int) error {
	if offset%Align != 0 || n%Align != 0 {
		return fmt.Errorf("%w: offset %#x length %d", ErrMisaligned, offset, n)
	}
	return nil
}

// RoundUp rounds n up to the next multiple of Align.
func RoundUp(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

// ReadUnaligned reads len(buf) bytes starting at an arbitrary offset by
// reading the smallest covering aligned window.
func ReadUnaligned(ctx context.Context, t Transport, offset uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	start := offset &^ (Align - 1)
	skip := int(offset - start)
	window := make([]byte, RoundUp(skip+len(buf)))
	if err := t.Read(ctx, start, window); err != nil {
		return err
	}
	copy(buf, window[skip:])
	return nil
}
