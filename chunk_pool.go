package segstream

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const (
	KiB = 1024
	MiB = KiB * KiB

	ChunkSize4K   = 4 * KiB
	ChunkSize16K  = 16 * KiB
	ChunkSize64K  = 64 * KiB
	ChunkSize256K = 256 * KiB
	ChunkSize1M   = 1 * MiB
)

// chunkSizes represents the supported chunk sizes ordered by smallest to largest.
//   - Every size is a multiple of the page size, so each chunk can be mapped and
//     unmapped on its own.
//   - The largest size caps the block size requested by a growing stream.
var chunkSizes = [5]int{
	ChunkSize4K,
	ChunkSize16K,
	ChunkSize64K,
	ChunkSize256K,
	ChunkSize1M,
}

func init() {
	// Runtime assertion.
	if !sort.IntsAreSorted(chunkSizes[:]) {
		panic(errors.New("chunk sizes must be sorted in ascending order"))
	}
}

// LeasePool defines the contract for an allocator that leases memory blocks to streams.
type LeasePool interface {
	Rent(minSize int) []byte // Rent returns a block with len >= minSize.
	Return(c []byte)         // Return gives a rented block back to the pool.
	MaxBlockSize() int       // Hint for the largest block the pool serves from its free lists.
}

type ChunkPoolConfig struct {
	// Number of free chunks for each chunk size the pool can hold before starting to release memory.
	FreeThresholds [len(chunkSizes)]int

	Logger *slog.Logger
}

// ChunkPoolStats is a point-in-time snapshot of pool counters.
type ChunkPoolStats struct {
	Rents     uint64 // Blocks handed out, including oversized ones.
	Returns   uint64 // Blocks given back that matched a supported size.
	Oversized uint64 // Rents larger than the largest chunk size, served from the Go heap.
	Mapped    uint64 // Chunks allocated via mmap.
	Unmapped  uint64 // Chunks released back to the operating system.
	Free      [len(chunkSizes)]int
}

// ChunkPool is a thread-safe collection of free lists for off-heap memory chunks
// of a pre-defined set of fixed sizes. It implements [LeasePool].
type ChunkPool struct {
	mu   sync.Mutex
	free [len(chunkSizes)][][]byte

	// freeThresholds represents the number of free chunks for each size the pool
	// can hold before starting to release memory.
	freeThresholds [len(chunkSizes)]int
	logger         *slog.Logger

	rents     atomic.Uint64
	returns   atomic.Uint64
	oversized atomic.Uint64
	mapped    atomic.Uint64
	unmapped  atomic.Uint64
}

// NewChunkPool creates a new, empty chunk pool.
func NewChunkPool(config ChunkPoolConfig) *ChunkPool {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkPool{freeThresholds: config.FreeThresholds, logger: logger}
}

// Sizes returns a slice of supported chunk sizes.
func (p *ChunkPool) Sizes() []int {
	return chunkSizes[:]
}

func (p *ChunkPool) IsSupported(chunkSize int) bool {
	return slices.Contains(p.Sizes(), chunkSize)
}

// MaxBlockSize returns the largest supported chunk size.
func (p *ChunkPool) MaxBlockSize() int {
	return chunkSizes[len(chunkSizes)-1]
}

// Rent returns a chunk of the smallest supported size that fits minSize.
// Requests larger than the largest chunk size are allocated on the Go heap
// and are not pooled on return.
// It will panic if minSize is negative.
func (p *ChunkPool) Rent(minSize int) []byte {
	if minSize < 0 {
		panic(fmt.Sprintf("illegal rent size: %d", minSize))
	}
	p.rents.Add(1)
	i := tierFor(minSize)
	if i < 0 {
		p.oversized.Add(1)
		return make([]byte, minSize)
	}
	return p.get(i)
}

// Get retrieves a chunk from a pool of the specified size.
// It will panic if an unsupported size is requested.
func (p *ChunkPool) Get(chunkSize int) []byte {
	i := tierOf(chunkSize)
	if i < 0 {
		panic(fmt.Sprintf("unsupported chunk size requested: %d", chunkSize))
	}
	p.rents.Add(1)
	return p.get(i)
}

func (p *ChunkPool) get(i int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free[i]) == 0 {
		p.alloc(i, 1)
	}
	n := len(p.free[i]) - 1
	c := p.free[i][n]
	p.free[i][n] = nil
	p.free[i] = p.free[i][:n]
	return c
}

// Return gives a chunk back to the pool.
// It does nothing if the chunk is nil or not a supported size.
func (p *ChunkPool) Return(c []byte) {
	if c == nil {
		return
	}

	size := cap(c)
	c = c[:size] // Ensure the chunk is reset to its full capacity before returning.
	i := tierOf(size)
	if i < 0 {
		return // Oversized heap block; left to the GC.
	}
	p.returns.Add(1)

	var chunksToUnmap [][]byte
	p.mu.Lock()
	p.free[i] = append(p.free[i], c)
	p.free[i], chunksToUnmap = releaseChunks(p.free[i], p.freeThresholds[i])
	p.mu.Unlock()

	// Perform unmap outside of the lock to avoid blocking other operations.
	for _, chunk := range chunksToUnmap {
		p.unmap(chunk)
	}
}

// Allocate ensures that at least numChunks are available in the pool for the
// specified size. This is useful for pre-warming a pool to a specific capacity.
// It will panic if an unsupported size is requested.
func (p *ChunkPool) Allocate(chunkSize int, numChunks int) {
	if numChunks <= 0 {
		return
	}
	i := tierOf(chunkSize)
	if i < 0 {
		panic(fmt.Sprintf("unsupported chunk size for pre-allocation: %d", chunkSize))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := numChunks - len(p.free[i]); n > 0 {
		p.alloc(i, n)
	}
}

// Stats returns a snapshot of the pool counters.
func (p *ChunkPool) Stats() ChunkPoolStats {
	s := ChunkPoolStats{
		Rents:     p.rents.Load(),
		Returns:   p.returns.Load(),
		Oversized: p.oversized.Load(),
		Mapped:    p.mapped.Load(),
		Unmapped:  p.unmapped.Load(),
	}
	p.mu.Lock()
	for i := range p.free {
		s.Free[i] = len(p.free[i])
	}
	p.mu.Unlock()
	return s
}

// unmap releases the memory of a chunk back to the operating system.
func (p *ChunkPool) unmap(c []byte) {
	if err := unix.Munmap(c); err != nil {
		p.logger.Error("failed to unmap chunk", "size", len(c), "error", err)
		return
	}
	p.unmapped.Add(1)
}

// alloc maps numChunks new chunks for the size tier i and appends them to its free list.
// It assumes the caller holds the mutex.
func (p *ChunkPool) alloc(i int, numChunks int) {
	chunkSize := chunkSizes[i]
	for range numChunks {
		// Use unix.Mmap to allocate virtual memory that is not part the Go heap.
		// Each chunk is its own mapping so it can be unmapped independently.
		data, err := unix.Mmap(-1, 0, chunkSize,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_ANON|unix.MAP_PRIVATE,
		)
		if err != nil {
			panic(fmt.Errorf("cannot allocate %d bytes via mmap: %w", chunkSize, err))
		}
		p.free[i] = append(p.free[i], data[:chunkSize:chunkSize])
		p.mapped.Add(1)
	}
}

// numFree returns the number of available chunks for a given chunk size.
// It is primarily intended as helper method in tests.
func (p *ChunkPool) numFree(size int) int {
	i := tierOf(size)
	if i < 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[i])
}

// tierOf returns the index of an exact supported chunk size, or -1.
func tierOf(size int) int {
	for i, s := range chunkSizes {
		if s == size {
			return i
		}
	}
	return -1
}

// tierFor returns the index of the smallest chunk size that fits n bytes, or -1.
func tierFor(n int) int {
	for i, s := range chunkSizes {
		if n <= s {
			return i
		}
	}
	return -1
}

// releaseChunks is a generic helper that trims the free list if it exceeds the given threshold.
// It returns the updated list and a list of any chunks that were removed and should be unmapped.
func releaseChunks[P any](freeList []P, threshold int) (newList []P, toUnmap []P) {
	if threshold > 0 && len(freeList) > threshold {
		// Release half of the free chunks to prevent thrashing around the threshold.
		freeCount := len(freeList) / 2
		toUnmap = slices.Clone(freeList[:freeCount])
		n := copy(freeList, freeList[freeCount:])
		clear(freeList[n:])
		return freeList[:n], toUnmap
	}
	return freeList, nil
}
