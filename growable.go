package segstream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// MinRead is the minimum capacity ReadFrom makes available ahead of each read.
const MinRead = 512

// maxConsecutiveEmptyReads bounds how long ReadFrom tolerates a reader returning 0, nil.
const maxConsecutiveEmptyReads = 100

// emptyGrowable is the shared stream returned for a zero maximum capacity.
var emptyGrowable = &Growable{shared: true}

// Growable is a read/write stream whose storage grows on demand by leasing blocks
// from a [LeasePool], up to a fixed maximum capacity.
type Growable struct {
	core
	shared bool
}

var (
	_ io.ReaderFrom   = (*Growable)(nil)
	_ io.StringWriter = (*Growable)(nil)
)

// Empty returns the shared stream with zero capacity. It does not own storage,
// any write to it fails and closing it has no effect.
func Empty() *Growable {
	return emptyGrowable
}

// New creates a growable stream backed by the shared pools.
func New(minCapacity, maxCapacity int64) (*Growable, error) {
	return NewGrowable(Config{MinCapacity: minCapacity, MaxCapacity: maxCapacity})
}

// NewGrowable creates a growable stream that owns its storage and has already
// reserved config.MinCapacity bytes. A zero config.MaxCapacity yields [Empty].
func NewGrowable(config Config) (*Growable, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxCapacity == 0 {
		return Empty(), nil
	}
	config = config.withDefaults()

	g := &Growable{}
	g.minCapacity = config.MinCapacity
	g.maxCapacity = config.MaxCapacity
	g.pool = config.Pool
	g.shells = config.Shells
	g.logger = config.Logger
	g.flags.setOwner()

	if err := g.grow(g.minCapacity); err != nil {
		g.Close()
		return nil, fmt.Errorf("failed to reserve minimum capacity: %w", err)
	}
	g.refreshFast()
	return g, nil
}

// Write writes p at the current position, growing the stream when the write ends
// past its length. Writes are all or nothing.
func (g *Growable) Write(p []byte) (int, error) {
	if err := g.checkDisposed(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil // No-op
	}
	if g.fast.tryWrite(p) {
		g.position += int64(len(p))
		return len(p), nil
	}

	end := g.position + int64(len(p))
	if end > g.length {
		// Every byte of the new range is overwritten below, so there is nothing to clear.
		if err := g.extend(end, false); err != nil {
			return 0, err
		}
	}
	if n := g.chain.writeAt(p, g.position, g.fast.seg); n != len(p) {
		return 0, g.invariantViolation(fmt.Sprintf("wrote %d of %d bytes", n, len(p)))
	}
	g.position = end
	g.refreshFast()
	return len(p), nil
}

func (g *Growable) WriteByte(c byte) error {
	if err := g.checkDisposed(); err != nil {
		return err
	}
	if g.fast.tryWriteByte(c) {
		g.position++
		return nil
	}
	_, err := g.Write([]byte{c})
	return err
}

func (g *Growable) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

// WriteContext is Write after checking that ctx is not done. It never blocks.
func (g *Growable) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return g.Write(p)
}

// SetLength truncates or extends the stream to n bytes. Extended bytes read as zero.
// When truncating, a position past the new length is moved to it.
func (g *Growable) SetLength(n int64) error {
	if err := g.checkDisposed(); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: length %d", ErrOutOfRange, n)
	}
	switch {
	case n == g.length:
		return nil
	case n < g.length:
		g.length = n
		g.position = min(g.position, n)
	default:
		if err := g.extend(n, true); err != nil {
			return err
		}
	}
	g.refreshFast()
	return nil
}

// Trim releases storage beyond the larger of the stream length and the minimum
// capacity back to the pool. Chains previously returned by Buffer are invalidated.
func (g *Growable) Trim() error {
	if err := g.checkDisposed(); err != nil {
		return err
	}
	g.trim()
	return nil
}

// ReadFrom reads data from r until EOF and writes it at the current position,
// reading directly into segment memory. It implements the [io.ReaderFrom] interface.
// When r still has data once the maximum capacity is reached, ReadFrom returns
// [ErrCapacityExceeded] and the single byte read to detect it is dropped.
func (g *Growable) ReadFrom(r io.Reader) (n int64, err error) {
	if err := g.checkDisposed(); err != nil {
		return 0, err
	}
	defer g.refreshFast()

	for empty := 0; ; {
		if g.position == g.maxCapacity {
			return n, g.probeFull(r)
		}
		if g.capacity-g.position < MinRead {
			want := min(g.position+MinRead, g.maxCapacity)
			if err := g.grow(want); err != nil {
				return n, err
			}
		}

		m, err := r.Read(g.spanAt(g.position))
		if m < 0 {
			panic("segstream: reader returned negative count from Read")
		}
		g.position += int64(m)
		g.length = max(g.length, g.position)
		n += int64(m)

		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if m > 0 {
			empty = 0
		} else if empty++; empty >= maxConsecutiveEmptyReads {
			return n, io.ErrNoProgress
		}
	}
}

// probeFull reports whether r is exhausted once the stream is at its maximum capacity.
func (g *Growable) probeFull(r io.Reader) error {
	var probe [1]byte
	for range maxConsecutiveEmptyReads {
		m, err := r.Read(probe[:])
		if m > 0 {
			return fmt.Errorf("%w: reader has data beyond %d bytes", ErrCapacityExceeded, g.maxCapacity)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return io.ErrNoProgress
}

// spanAt returns the writable memory from pos to the end of its segment,
// regardless of the stream length.
func (g *Growable) spanAt(pos int64) []byte {
	seg, i := g.chain.locate(pos, g.fast.seg)
	hi := len(seg.buf)
	if seg == g.chain.tail {
		hi = g.chain.end
	}
	return seg.buf[i:hi]
}

// Reset empties the stream while retaining its capacity.
func (g *Growable) Reset() error {
	if err := g.checkDisposed(); err != nil {
		return err
	}
	if g.shared {
		return nil
	}
	g.position = 0
	g.length = 0
	g.refreshFast()
	return nil
}

// CanWrite reports whether the stream accepts writes. The shared empty stream
// never does.
func (g *Growable) CanWrite() bool {
	return !g.shared && !g.Disposed()
}

// Close releases the storage back to the pool. Further operations, except Close,
// fail with [ErrDisposed]. Closing the shared empty stream has no effect.
func (g *Growable) Close() error {
	if g.shared {
		return nil
	}
	g.dispose()
	return nil
}
