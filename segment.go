package segstream

import (
	"sync/atomic"

	"github.com/holmberd/go-segstream/internal/lfstack"
)

// Segment is one node of a [Chain]: a contiguous block of memory plus an
// exclusively owned link to the following node.
type Segment struct {
	lease        []byte   // Leased block, nil for caller-provided memory.
	buf          []byte   // Usable region; a prefix of lease for leased segments.
	next         *Segment // Following node, or nil for the tail.
	runningIndex int64    // Offset of buf[0] from the first node of the chain.
}

// Bytes returns the usable memory of the segment.
func (s *Segment) Bytes() []byte {
	return s.buf
}

func (s *Segment) Len() int {
	return len(s.buf)
}

// Next returns the following segment, or nil.
func (s *Segment) Next() *Segment {
	return s.next
}

// RunningIndex returns the offset of the segment's first byte from the start of the
// first segment of its chain.
func (s *Segment) RunningIndex() int64 {
	return s.runningIndex
}

// end returns the running index one past the segment's last usable byte.
func (s *Segment) end() int64 {
	return s.runningIndex + int64(len(s.buf))
}

// isBare reports whether the segment holds no memory and no link.
func (s *Segment) isBare() bool {
	return s.lease == nil && s.buf == nil && s.next == nil
}

func (s *Segment) reset() {
	s.lease = nil
	s.buf = nil
	s.next = nil
	s.runningIndex = 0
}

// ShellPool recycles bare [Segment] shells between streams.
type ShellPool interface {
	Get() *Segment           // Get returns a bare shell, or nil if none is available.
	Put(shell *Segment) bool // Put offers a bare shell for reuse; false means it was discarded.
}

// ShellStackStats is a point-in-time snapshot of free-list counters.
type ShellStackStats struct {
	Hits      uint64 // Get calls that returned a recycled shell.
	Misses    uint64 // Get calls that found the free-list empty.
	Recycled  uint64 // Shells accepted by Put.
	Discarded uint64 // Shells refused by Put, because the free-list was full or the shell not bare.
	Len       int    // Approximate number of shells currently held.
	Cap       int
}

// ShellStack is a bounded lock-free free-list of segment shells implementing [ShellPool].
// It is safe for concurrent use.
type ShellStack struct {
	stack *lfstack.Stack[Segment]

	hits      atomic.Uint64
	misses    atomic.Uint64
	recycled  atomic.Uint64
	discarded atomic.Uint64
}

// NewShellStack creates a free-list holding at most size shells.
func NewShellStack(size int) *ShellStack {
	return &ShellStack{stack: lfstack.New[Segment](size)}
}

func (p *ShellStack) Get() *Segment {
	if s := p.stack.Pop(); s != nil {
		p.hits.Add(1)
		return s
	}
	p.misses.Add(1)
	return nil
}

// Put pushes a bare shell onto the free-list. Shells that still hold memory or a
// link are refused, as are shells pushed while the free-list is full.
func (p *ShellStack) Put(shell *Segment) bool {
	if shell == nil || !shell.isBare() || !p.stack.Push(shell) {
		p.discarded.Add(1)
		return false
	}
	p.recycled.Add(1)
	return true
}

func (p *ShellStack) Stats() ShellStackStats {
	return ShellStackStats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Recycled:  p.recycled.Load(),
		Discarded: p.discarded.Load(),
		Len:       p.stack.Len(),
		Cap:       p.stack.Cap(),
	}
}

// leaseSegment returns a detached segment holding a block of at least minSize bytes,
// reusing a recycled shell when one is available.
func leaseSegment(pool LeasePool, shells ShellPool, minSize int) *Segment {
	seg := shells.Get()
	if seg == nil {
		seg = new(Segment)
	}
	seg.lease = pool.Rent(minSize)
	return seg
}

// releaseChain cascade-releases seg and all of its successors: each block is returned
// to the pool, the link severed, and the bare shell offered to the free-list.
// It returns the number of segments and usable bytes released.
func releaseChain(seg *Segment, pool LeasePool, shells ShellPool) (n int, size int64) {
	for seg != nil {
		next := seg.next
		size += int64(len(seg.buf))
		if seg.lease != nil {
			pool.Return(seg.lease)
		}
		seg.reset()
		shells.Put(seg) // Best effort; a refused shell is left to the GC.
		seg = next
		n++
	}
	return n, size
}
