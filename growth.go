package segstream

import "fmt"

const (
	// minBlockSize is the smallest block a growing stream requests.
	minBlockSize = 1 * KiB

	// maxBlockSizeFloor is the lower bound of the block size cap, used when the pool
	// reports a smaller maximum.
	maxBlockSizeFloor = 256 * KiB
)

// nextBlockSize returns the size of the next block to request: the block size cap once
// either the shortfall or the current capacity reaches it, otherwise the largest of the
// shortfall, half the current capacity and minBlockSize.
func nextBlockSize(needed, capacity, maxBlock int64) int64 {
	if needed >= maxBlock || capacity >= maxBlock {
		return maxBlock
	}
	return max(needed, capacity/2, minBlockSize)
}

// grow appends leased segments until the capacity reaches target.
// Each segment's usable region is cut so the capacity never exceeds maxCapacity.
func (s *core) grow(target int64) error {
	if target <= s.capacity {
		return nil
	}
	if target > s.maxCapacity {
		return fmt.Errorf("%w: requested %d, maximum %d", ErrCapacityExceeded, target, s.maxCapacity)
	}
	if !s.flags.owner() {
		return ErrNotOwner
	}

	maxBlock := max(maxBlockSizeFloor, int64(s.pool.MaxBlockSize()))
	for needed := target - s.capacity; needed > 0; needed = target - s.capacity {
		allowance := s.maxCapacity - s.capacity
		delta := min(nextBlockSize(needed, s.capacity, maxBlock), allowance)
		if delta <= 0 {
			return s.invariantViolation(fmt.Sprintf("no room to grow from %d toward %d", s.capacity, target))
		}

		seg := leaseSegment(s.pool, s.shells, int(delta))
		usable := min(int64(len(seg.lease)), allowance)
		if usable <= 0 {
			releaseChain(seg, s.pool, s.shells)
			return s.invariantViolation(fmt.Sprintf("pool returned an empty block for %d bytes", delta))
		}
		seg.buf = seg.lease[:usable]
		s.chain.append(seg)
		s.capacity += usable
	}
	return nil
}

// extend sets the stream length to n, growing the capacity first when needed.
// When zero is set, the bytes between the old and the new length are cleared.
func (s *core) extend(n int64, zero bool) error {
	if err := s.grow(n); err != nil {
		return err
	}
	if zero {
		gap, err := s.chain.Slice(s.length, n-s.length)
		if err != nil {
			return s.invariantViolation(err.Error())
		}
		gap.Clear()
	}
	s.length = n
	return nil
}

// trim releases capacity beyond max(length, minCapacity) back to the pool.
func (s *core) trim() {
	keep := max(s.length, s.minCapacity)
	if s.chain.head == nil || s.pool == nil || keep >= s.capacity {
		return // No-op
	}
	before := s.capacity
	rest := s.chain.cut(keep)
	n, _ := releaseChain(rest, s.pool, s.shells)
	s.capacity = s.chain.Len()

	// The cached segment may have been released.
	s.fast.reset()
	s.refreshFast()

	s.logger.Debug(
		"trimmed stream",
		"segments", n,
		"released", before-s.capacity,
		"capacity", s.capacity,
	)
}
