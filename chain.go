package segstream

import (
	"fmt"
	"iter"

	"github.com/cespare/xxhash/v2"
)

// Chain is a read view over an ordered run of segments addressed as one logical buffer.
// It spans from index start of the head segment to index end (exclusive) of the tail
// segment. The zero value is an empty chain.
//
// A Chain does not own its segments; slicing or copying a Chain never copies memory.
type Chain struct {
	head  *Segment
	tail  *Segment
	start int // Index into head.buf.
	end   int // Index into tail.buf, exclusive.
}

// Position identifies a byte offset inside a [Chain]. It is only meaningful to the
// chain that produced it, or to chains sharing its segments.
type Position struct {
	seg   *Segment
	index int
}

// NewChain links the non-empty blocks into a chain of caller-owned segments.
// The blocks are not copied.
func NewChain(blocks ...[]byte) Chain {
	var c Chain
	for _, b := range blocks {
		if len(b) == 0 {
			continue
		}
		c.append(&Segment{buf: b})
	}
	return c
}

// Len returns the number of bytes in the chain.
func (c Chain) Len() int64 {
	if c.head == nil {
		return 0
	}
	return (c.tail.runningIndex + int64(c.end)) - (c.head.runningIndex + int64(c.start))
}

func (c Chain) IsEmpty() bool {
	return c.Len() == 0
}

// IsSingleSegment reports whether the chain lies within a single segment.
func (c Chain) IsSingleSegment() bool {
	return c.head == c.tail
}

// First returns the bytes of the chain held by its first segment.
func (c Chain) First() []byte {
	if c.head == nil {
		return nil
	}
	if c.IsSingleSegment() {
		return c.head.buf[c.start:c.end]
	}
	return c.head.buf[c.start:]
}

// Position returns the position of the byte at offset.
// An offset equal to Len yields the end position.
func (c Chain) Position(offset int64) (Position, error) {
	if offset < 0 || offset > c.Len() {
		return Position{}, fmt.Errorf("%w: offset %d with length %d", ErrOutOfRange, offset, c.Len())
	}
	if c.head == nil {
		return Position{}, nil
	}
	seg, i := c.locate(offset, nil)
	return Position{seg: seg, index: i}, nil
}

// Offset returns the offset of pos from the start of the chain.
func (c Chain) Offset(pos Position) int64 {
	if pos.seg == nil || c.head == nil {
		return 0
	}
	return pos.seg.runningIndex + int64(pos.index) - (c.head.runningIndex + int64(c.start))
}

// Slice returns the sub-chain of length bytes beginning at offset start.
// An empty slice is the zero Chain.
func (c Chain) Slice(start, length int64) (Chain, error) {
	if start < 0 || length < 0 || start+length > c.Len() {
		return Chain{}, fmt.Errorf(
			"%w: slice [%d:%d] with length %d", ErrOutOfRange, start, start+length, c.Len(),
		)
	}
	if length == 0 {
		return Chain{}, nil
	}
	head, si := c.locate(start, nil)
	tail, ei := c.locateEnd(start + length)
	return Chain{head: head, tail: tail, start: si, end: ei}, nil
}

// Segments iterates over the contiguous memory regions of the chain in order.
func (c Chain) Segments() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if c.head == nil {
			return
		}
		for seg := c.head; seg != nil; seg = seg.next {
			lo, hi := 0, len(seg.buf)
			if seg == c.head {
				lo = c.start
			}
			if seg == c.tail {
				hi = c.end
			}
			if hi > lo && !yield(seg.buf[lo:hi]) {
				return
			}
			if seg == c.tail {
				return
			}
		}
	}
}

// CopyTo copies the chain into dst and returns the number of bytes copied,
// which is the minimum of len(dst) and Len.
func (c Chain) CopyTo(dst []byte) int {
	n := 0
	for b := range c.Segments() {
		if n == len(dst) {
			break
		}
		n += copy(dst[n:], b)
	}
	return n
}

// Bytes returns a copy of the chain contents in a single slice.
func (c Chain) Bytes() []byte {
	b := make([]byte, c.Len())
	c.CopyTo(b)
	return b
}

// Clear sets every byte of the chain to zero.
func (c Chain) Clear() {
	for b := range c.Segments() {
		clear(b)
	}
}

// Sum64 returns the xxhash digest of the chain contents.
func (c Chain) Sum64() uint64 {
	d := xxhash.New()
	for b := range c.Segments() {
		d.Write(b)
	}
	return d.Sum64()
}

// locate returns the segment and index of the byte at offset, preferring the start of
// the next segment on a boundary. Offsets equal to Len resolve to the tail end.
// A non-nil hint that lies at or before the offset is used as the search start.
func (c Chain) locate(offset int64, hint *Segment) (*Segment, int) {
	abs := c.head.runningIndex + int64(c.start) + offset
	seg := c.head
	if hint != nil && hint.runningIndex <= abs && hint.runningIndex >= seg.runningIndex {
		seg = hint
	}
	for seg != c.tail && abs >= seg.end() {
		seg = seg.next
	}
	return seg, int(abs - seg.runningIndex)
}

// locateEnd is like locate but prefers the end of the previous segment on a boundary.
func (c Chain) locateEnd(offset int64) (*Segment, int) {
	abs := c.head.runningIndex + int64(c.start) + offset
	seg := c.head
	for seg != c.tail && abs > seg.end() {
		seg = seg.next
	}
	return seg, int(abs - seg.runningIndex)
}

// readAt copies bytes starting at offset into dst and returns the number copied.
func (c Chain) readAt(dst []byte, offset int64, hint *Segment) int {
	n := 0
	seg, i := c.locate(offset, hint)
	for n < len(dst) && seg != nil {
		hi := len(seg.buf)
		if seg == c.tail {
			hi = c.end
		}
		n += copy(dst[n:], seg.buf[i:hi])
		if seg == c.tail {
			break
		}
		seg, i = seg.next, 0
	}
	return n
}

// writeAt copies src into the chain starting at offset and returns the number copied.
func (c Chain) writeAt(src []byte, offset int64, hint *Segment) int {
	n := 0
	seg, i := c.locate(offset, hint)
	for n < len(src) && seg != nil {
		hi := len(seg.buf)
		if seg == c.tail {
			hi = c.end
		}
		n += copy(seg.buf[i:hi], src[n:])
		if seg == c.tail {
			break
		}
		seg, i = seg.next, 0
	}
	return n
}

// append links seg after the tail and extends the chain over all of seg's usable bytes.
func (c *Chain) append(seg *Segment) {
	seg.next = nil
	if c.head == nil {
		seg.runningIndex = 0
		c.head, c.start = seg, 0
	} else {
		seg.runningIndex = c.tail.runningIndex + int64(c.end)
		c.tail.next = seg
	}
	c.tail, c.end = seg, len(seg.buf)
}

// cut shortens the chain to its first n bytes and returns the detached successors of
// the new tail. The new tail's usable region is shortened to end at the cut.
func (c *Chain) cut(n int64) *Segment {
	if c.head == nil {
		return nil
	}
	if n == 0 {
		rest := c.head
		*c = Chain{}
		return rest
	}
	seg, i := c.locateEnd(n)
	rest := seg.next
	seg.next = nil
	seg.buf = seg.buf[:i]
	c.tail, c.end = seg, i
	return rest
}
