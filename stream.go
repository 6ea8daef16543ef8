// Package segstream implements seekable byte streams over chains of pooled memory segments.
// It supports growable read/write streams whose storage is leased block by block from a
// pool, and fixed read-only streams over an existing chain.
package segstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

var (
	defaultChunkPool = NewChunkPool(DefaultChunkPoolConfig())
	defaultShellPool = NewShellStack(DefaultShellPoolSize)
)

// DefaultChunkPool returns the chunk pool shared by streams created without a pool.
func DefaultChunkPool() *ChunkPool {
	return defaultChunkPool
}

// DefaultShellPool returns the segment shell free-list shared by streams created without one.
func DefaultShellPool() *ShellStack {
	return defaultShellPool
}

// Stream is the seekable read/write surface shared by [*Growable] and [*Fixed].
// The set of implementations is closed.
//
// A Stream is not safe for concurrent use, with the exception of Disposed and IsOwner.
type Stream interface {
	io.ReadWriteSeeker
	io.ByteReader
	io.ByteWriter
	io.WriterTo
	io.Closer

	ReadContext(ctx context.Context, p []byte) (int, error)
	WriteContext(ctx context.Context, p []byte) (int, error)
	CopyTo(ctx context.Context, w io.Writer) (int64, error)
	Flush() error
	FlushContext(ctx context.Context) error

	Position() int64
	SetPosition(pos int64) error
	Len() int64
	SetLength(n int64) error
	Capacity() int64
	Buffer() (Chain, error)
	Trim() error
	Sum64() (uint64, error)

	CanWrite() bool
	Disposed() bool
	IsOwner() bool

	sealed()
}

var (
	_ Stream = (*Growable)(nil)
	_ Stream = (*Fixed)(nil)
)

// core holds the state and read-side behavior shared by both stream variants.
//
// While not disposed:
//
//	capacity == chain.Len()
//	minCapacity <= capacity <= maxCapacity
//	0 <= position <= length <= capacity
//	owner flag set <=> pool != nil
type core struct {
	flags streamFlags
	chain Chain

	length   int64
	capacity int64
	position int64

	minCapacity int64
	maxCapacity int64

	pool   LeasePool
	shells ShellPool
	fast   fastState
	logger *slog.Logger
}

func (s *core) sealed() {}

func (s *core) checkDisposed() error {
	if s.flags.disposed() {
		return ErrDisposed
	}
	return nil
}

// Disposed reports whether the stream has been closed. It is safe for concurrent use.
func (s *core) Disposed() bool {
	return s.flags.disposed()
}

// IsOwner reports whether the stream owns, and may grow, its storage.
// It is safe for concurrent use.
func (s *core) IsOwner() bool {
	return s.flags.owner()
}

// Position returns the current read/write offset, or 0 once disposed.
func (s *core) Position() int64 {
	return s.position
}

// Len returns the length of the stream, or 0 once disposed.
func (s *core) Len() int64 {
	return s.length
}

// Capacity returns the number of bytes the stream can hold without growing.
func (s *core) Capacity() int64 {
	return s.capacity
}

// SetPosition moves the read/write offset to pos, which must lie within [0, Len].
func (s *core) SetPosition(pos int64) error {
	if err := s.checkDisposed(); err != nil {
		return err
	}
	if pos < 0 || pos > s.length {
		return fmt.Errorf("%w: position %d with length %d", ErrOutOfRange, pos, s.length)
	}
	if s.position != pos {
		s.position = pos // Skip redundant stores; the empty stream is shared.
	}
	s.refreshFast()
	return nil
}

// Seek sets the offset for the next Read or Write. It implements the [io.Seeker] interface.
// Seeking before the start or past the end of the stream is an error.
func (s *core) Seek(offset int64, whence int) (int64, error) {
	if err := s.checkDisposed(); err != nil {
		return 0, err
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.position + offset
	case io.SeekEnd:
		target = s.length + offset
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidWhence, whence)
	}
	if err := s.SetPosition(target); err != nil {
		return 0, err
	}
	return target, nil
}

// Read reads up to len(p) bytes from the current position.
// At the end of the stream it returns 0, [io.EOF].
func (s *core) Read(p []byte) (n int, err error) {
	if err := s.checkDisposed(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil // No-op
	}
	if n = s.fast.tryRead(p); n > 0 {
		s.position += int64(n)
		return n, nil
	}
	if s.position >= s.length {
		return 0, io.EOF
	}

	// Slow path: the read crosses a segment boundary or the end of the stream.
	want := min(int64(len(p)), s.length-s.position)
	n = s.chain.readAt(p[:want], s.position, s.fast.seg)
	s.position += int64(n)
	s.refreshFast()
	return n, nil
}

// ReadByte reads a single byte. At the end of the stream it returns 0, [io.EOF].
func (s *core) ReadByte() (byte, error) {
	if err := s.checkDisposed(); err != nil {
		return 0, err
	}
	if b, ok := s.fast.tryReadByte(); ok {
		s.position++
		return b, nil
	}
	if s.position >= s.length {
		return 0, io.EOF
	}
	s.refreshFast()
	b, ok := s.fast.tryReadByte()
	if !ok {
		return 0, s.invariantViolation("empty window before end of stream")
	}
	s.position++
	return b, nil
}

// ReadContext is Read after checking that ctx is not done. It never blocks.
func (s *core) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.Read(p)
}

// WriteTo writes the unread remainder of the stream to w, one segment region at a
// time, directly from segment memory. It implements the [io.WriterTo] interface.
// The position advances by the number of bytes w accepted.
func (s *core) WriteTo(w io.Writer) (n int64, err error) {
	if err := s.checkDisposed(); err != nil {
		return 0, err
	}
	for s.position < s.length {
		b := s.fast.window
		if len(b) == 0 {
			s.refreshFast()
			if b = s.fast.window; len(b) == 0 {
				return n, s.invariantViolation("empty window before end of stream")
			}
		}
		m, err := w.Write(b)
		if m < 0 || m > len(b) {
			panic(fmt.Sprintf("segstream: invalid Write count %d for %d bytes", m, len(b)))
		}
		s.position += int64(m)
		s.fast.window = b[m:]
		n += int64(m)
		if err != nil {
			return n, err
		}
		if m < len(b) {
			return n, io.ErrShortWrite
		}
	}
	return n, nil
}

// CopyTo is WriteTo after checking that ctx is not done.
func (s *core) CopyTo(ctx context.Context, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.WriteTo(w)
}

// Flush is a no-op; nothing is buffered outside the chain.
func (s *core) Flush() error {
	return s.checkDisposed()
}

func (s *core) FlushContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Flush()
}

// Buffer returns the chain holding the stream contents [0, Len).
// The chain shares memory with the stream and is invalidated by Close and Trim.
func (s *core) Buffer() (Chain, error) {
	if err := s.checkDisposed(); err != nil {
		return Chain{}, err
	}
	return s.chain.Slice(0, s.length)
}

// Sum64 returns the xxhash digest of the stream contents [0, Len).
func (s *core) Sum64() (uint64, error) {
	c, err := s.Buffer()
	if err != nil {
		return 0, err
	}
	return c.Sum64(), nil
}

// refreshFast rebuilds the fast-path window at the current position.
func (s *core) refreshFast() {
	if s.chain.head == nil {
		if !s.fast.isZero() {
			s.fast.reset()
		}
		return
	}
	seg, i := s.chain.locate(s.position, s.fast.seg)
	hi := len(seg.buf)
	if seg == s.chain.tail {
		hi = s.chain.end
	}
	hi = min(hi, i+int(s.length-s.position))
	s.fast.seg = seg
	s.fast.window = seg.buf[i:hi]
}

// dispose releases the chain, when owned, and zeroes the stream state.
// It is idempotent.
func (s *core) dispose() {
	if !s.flags.markDisposed() {
		return // No-op; already disposed.
	}
	if s.pool != nil {
		n, size := releaseChain(s.chain.head, s.pool, s.shells)
		if s.logger != nil {
			s.logger.Debug("released stream segments", "segments", n, "bytes", size)
		}
	}
	s.chain = Chain{}
	s.length = 0
	s.capacity = 0
	s.position = 0
	s.minCapacity = 0
	s.maxCapacity = 0
	s.pool = nil
	s.shells = nil
	s.fast.reset()
}

// invariantViolation logs and returns an internal consistency error.
func (s *core) invariantViolation(msg string) error {
	err := fmt.Errorf("%w: %s", ErrInvariantViolation, msg)
	if s.logger != nil {
		s.logger.Error(
			"stream invariant violated",
			"error", err,
			"position", s.position,
			"length", s.length,
			"capacity", s.capacity,
		)
	}
	return err
}
