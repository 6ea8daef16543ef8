package segstream

import (
	"context"
	"fmt"
	"log/slog"
)

// Fixed is a read-only stream over an existing [Chain]. It never owns the chain,
// so closing it leaves the segments untouched.
type Fixed struct {
	core
}

// NewFixed creates a read-only stream whose length and capacity equal c.Len().
func NewFixed(c Chain) *Fixed {
	n := c.Len()
	f := &Fixed{}
	f.chain = c
	f.length = n
	f.capacity = n
	f.minCapacity = n
	f.maxCapacity = n
	f.logger = slog.Default()
	f.refreshFast()
	return f
}

// NewFixedBytes creates a read-only stream over b without copying it.
func NewFixedBytes(b []byte) *Fixed {
	return NewFixed(NewChain(b))
}

func (f *Fixed) Write(p []byte) (int, error) {
	if err := f.checkDisposed(); err != nil {
		return 0, err
	}
	return 0, ErrUnsupported
}

func (f *Fixed) WriteByte(c byte) error {
	if err := f.checkDisposed(); err != nil {
		return err
	}
	return ErrUnsupported
}

func (f *Fixed) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.Write(p)
}

// SetLength only accepts the current length.
func (f *Fixed) SetLength(n int64) error {
	if err := f.checkDisposed(); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: length %d", ErrOutOfRange, n)
	}
	if n != f.length {
		return ErrUnsupported
	}
	return nil
}

func (f *Fixed) Trim() error {
	if err := f.checkDisposed(); err != nil {
		return err
	}
	return ErrUnsupported
}

// CanWrite always reports false.
func (f *Fixed) CanWrite() bool {
	return false
}

// Close marks the stream disposed. The underlying chain is not released.
func (f *Fixed) Close() error {
	f.dispose()
	return nil
}
