package memory

import (
	"context"
	"fmt"
	"sync"
)

// Fault decides whether a transfer should fail. A nil return lets it proceed.
type Fault func(offset uint64, n int) error

// Buffer is an in-memory Transport.
// Useful for testing and development. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu   sync.RWMutex
	data []byte

	readFault  Fault
	writeFault Fault

	reads  int
	writes int
}

// NewBuffer creates a zero-filled store of the given size.
func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Size returns the store size in bytes.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

func (b *Buffer) check(ctx context.Context, offset uint64, n int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := CheckAligned(offset, n); err != nil {
		return err
	}
	if offset > uint64(len(b.data)) || uint64(n) > uint64(len(b.data))-offset {
		return fmt.Errorf("%w: %w: offset %#x length %d", ErrTransport, ErrOutOfRange, offset, n)
	}
	return nil
}

// Read implements Transport.
func (b *Buffer) Read(ctx context.Context, offset uint64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx, offset, len(buf)); err != nil {
		return err
	}
	if b.readFault != nil {
		if err := b.readFault(offset, len(buf)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	b.reads++
	copy(buf, b.data[offset:])
	return nil
}

// Write implements Transport.
func (b *Buffer) Write(ctx context.Context, offset uint64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx, offset, len(buf)); err != nil {
		return err
	}
	if b.writeFault != nil {
		if err := b.writeFault(offset, len(buf)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	b.writes++
	copy(b.data[offset:], buf)
	return nil
}

// SetReadFault installs a fault hook for reads. Pass nil to clear it.
func (b *Buffer) SetReadFault(f Fault) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readFault = f
}

// SetWriteFault installs a fault hook for writes. Pass nil to clear it.
func (b *Buffer) SetWriteFault(f Fault) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeFault = f
}

// Poke writes data at any offset, bypassing alignment and fault hooks.
// It panics if data does not fit.
func (b *Buffer) Poke(offset int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:offset+len(data)], data)
}

// Peek returns a copy of n bytes at any offset.
func (b *Buffer) Peek(offset, n int) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]byte(nil), b.data[offset:offset+n]...)
}

// Counts returns the number of successful reads and writes.
func (b *Buffer) Counts() (reads, writes int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reads, b.writes
}
