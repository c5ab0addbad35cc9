package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// File is a Transport backed by a fixed-size file. The developer binary uses
// it so that session state survives restarts.
type File struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenFile opens or creates path and extends it to size bytes.
func OpenFile(path string, size int64) (*File, error) {
	if size <= 0 || size%Align != 0 {
		return nil, fmt.Errorf("%w: size %d", ErrMisaligned, size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	return &File{f: f, size: size}, nil
}

func (f *File) check(ctx context.Context, offset uint64, n int) error {
	if f.f == nil {
		return fmt.Errorf("%w: %w", ErrTransport, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := CheckAligned(offset, n); err != nil {
		return err
	}
	if offset > uint64(f.size) || uint64(n) > uint64(f.size)-offset {
		return fmt.Errorf("%w: %w: offset %#x length %d", ErrTransport, ErrOutOfRange, offset, n)
	}
	return nil
}

// Read implements Transport.
func (f *File) Read(ctx context.Context, offset uint64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, offset, len(buf)); err != nil {
		return err
	}
	if _, err := f.f.ReadAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// Write implements Transport.
func (f *File) Write(ctx context.Context, offset uint64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, offset, len(buf)); err != nil {
		return err
	}
	if _, err := f.f.WriteAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// Sync flushes the file to stable storage.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return ErrClosed
	}
	return f.f.Sync()
}

// Close closes the file. Further transfers fail with ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
