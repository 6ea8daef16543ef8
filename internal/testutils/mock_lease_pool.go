package testutils

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// MockLeasePool is a heap-backed block allocator that records every lease.
// Blocks are sized to the request, rounded up to Granularity when it is set.
type MockLeasePool struct {
	Granularity int
	MaxBlock    int

	rentCalls   atomic.Int64
	returnCalls atomic.Int64

	mu          sync.Mutex
	outstanding map[*byte]int
	rentedBytes int64
	badReturns  int64
}

func (p *MockLeasePool) Rent(minSize int) []byte {
	p.rentCalls.Add(1)
	size := max(minSize, 1)
	if g := p.Granularity; g > 0 {
		size = (size + g - 1) / g * g
	}
	b := make([]byte, size)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outstanding == nil {
		p.outstanding = make(map[*byte]int)
	}
	p.outstanding[unsafe.SliceData(b)] = size
	p.rentedBytes += int64(size)
	return b
}

// Return accepts a block previously handed out by Rent. Unknown and repeated
// returns are counted as bad returns.
func (p *MockLeasePool) Return(c []byte) {
	p.returnCalls.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	key := unsafe.SliceData(c)
	size, ok := p.outstanding[key]
	if !ok {
		p.badReturns++
		return
	}
	delete(p.outstanding, key)
	p.rentedBytes -= int64(size)
}

func (p *MockLeasePool) MaxBlockSize() int {
	return p.MaxBlock
}

func (p *MockLeasePool) RentCalls() int64 {
	return p.rentCalls.Load()
}

func (p *MockLeasePool) ReturnCalls() int64 {
	return p.returnCalls.Load()
}

// Outstanding returns the number of blocks rented and not yet returned.
func (p *MockLeasePool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// OutstandingBytes returns the total size of blocks rented and not yet returned.
func (p *MockLeasePool) OutstandingBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rentedBytes
}

// BadReturns returns the number of Return calls for blocks not currently rented.
func (p *MockLeasePool) BadReturns() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.badReturns
}
