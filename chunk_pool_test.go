package segstream

import (
	"io"
	"log/slog"
	"testing"
)

var testChunkPoolConfig = ChunkPoolConfig{
	FreeThresholds: [len(chunkSizes)]int{10, 10, 10, 10, 10},
	Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
}

func TestChunkPool(t *testing.T) {
	t.Run("Get and Return single chunk for each chunk size", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		for _, size := range pool.Sizes() {
			if numFree := pool.numFree(size); numFree != 0 {
				t.Fatalf("expected new pool for size %d to be empty, got %d chunks", size, numFree)
			}
		}

		for _, size := range pool.Sizes() {
			chunk := pool.Get(size)
			if chunk == nil {
				t.Fatalf("expected to get a valid chunk for size %d, got nil", size)
			}
			if len(chunk) != size || cap(chunk) != size {
				t.Errorf("expected for size %d: len/cap %d, got len=%d, cap=%d", size, size, len(chunk), cap(chunk))
			}
			if numFree := pool.numFree(size); numFree != 0 {
				t.Errorf("expected for size %d: no free chunks after Get, got %d", size, numFree)
			}
			pool.Return(chunk)
		}

		for _, size := range pool.Sizes() {
			if numFree := pool.numFree(size); numFree != 1 {
				t.Fatalf("expected for size %d: one free chunk after Return, got %d", size, numFree)
			}
		}
	})

	t.Run("Rent picks the smallest fitting size", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		cases := []struct {
			minSize  int
			expected int
		}{
			{0, ChunkSize4K},
			{1, ChunkSize4K},
			{ChunkSize4K, ChunkSize4K},
			{ChunkSize4K + 1, ChunkSize16K},
			{5000, ChunkSize16K},
			{ChunkSize256K + 1, ChunkSize1M},
			{ChunkSize1M, ChunkSize1M},
		}
		for _, tc := range cases {
			c := pool.Rent(tc.minSize)
			if len(c) != tc.expected {
				t.Errorf("expected Rent(%d) to return %d bytes, got %d", tc.minSize, tc.expected, len(c))
			}
			pool.Return(c)
		}
	})

	t.Run("Rent beyond the largest size is served from the heap", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		c := pool.Rent(ChunkSize1M + 1)
		if len(c) != ChunkSize1M+1 {
			t.Fatalf("expected %d bytes, got %d", ChunkSize1M+1, len(c))
		}
		pool.Return(c)

		stats := pool.Stats()
		if stats.Oversized != 1 || stats.Mapped != 0 || stats.Returns != 0 {
			t.Errorf("unexpected stats after oversized rent: %+v", stats)
		}
	})

	t.Run("Return restores the full chunk capacity", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		c := pool.Get(ChunkSize4K)
		pool.Return(c[:10])
		c = pool.Get(ChunkSize4K)
		if len(c) != ChunkSize4K {
			t.Fatalf("expected recycled chunk of %d bytes, got %d", ChunkSize4K, len(c))
		}
		pool.Return(c)
	})

	t.Run("Return nil does not panic or add to pool", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		pool.Return(nil) // This should be a no-op and should not cause a panic.
		for _, size := range pool.Sizes() {
			if numFree := pool.numFree(size); numFree != 0 {
				t.Fatalf("expected new pool for size %d to be empty, got %d chunks", size, numFree)
			}
		}
	})

	t.Run("Return unsupported size does not panic or add to pool", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		chunk := make([]byte, pool.MaxBlockSize()+1)
		pool.Return(chunk)
		for _, size := range pool.Sizes() {
			if numFree := pool.numFree(size); numFree != 0 {
				t.Fatalf("expected new pool for size %d to be empty, got %d chunks", size, numFree)
			}
		}
	})

	t.Run("Free list is halved past its threshold", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		threshold := testChunkPoolConfig.FreeThresholds[0]
		chunks := make([][]byte, threshold+1)
		for i := range chunks {
			chunks[i] = pool.Get(ChunkSize4K)
		}
		for _, c := range chunks {
			pool.Return(c)
		}

		// The free list releases half of its chunks once it holds threshold+1.
		expected := threshold + 1 - (threshold+1)/2
		if numFree := pool.numFree(ChunkSize4K); numFree != expected {
			t.Fatalf("expected %d free chunks, got %d", expected, numFree)
		}
		if stats := pool.Stats(); stats.Unmapped != uint64((threshold+1)/2) {
			t.Errorf("expected %d unmapped chunks, got %d", (threshold+1)/2, stats.Unmapped)
		}
	})

	t.Run("Allocate pre-warms a free list", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		pool.Allocate(ChunkSize64K, 3)
		if numFree := pool.numFree(ChunkSize64K); numFree != 3 {
			t.Fatalf("expected 3 free chunks, got %d", numFree)
		}
		pool.Allocate(ChunkSize64K, 2) // Already satisfied.
		if stats := pool.Stats(); stats.Mapped != 3 || stats.Free[tierOf(ChunkSize64K)] != 3 {
			t.Errorf("unexpected stats after Allocate: %+v", stats)
		}
	})

	t.Run("Get unsupported size panics", func(t *testing.T) {
		pool := NewChunkPool(testChunkPoolConfig)
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected Get with an unsupported size to panic")
			}
		}()
		pool.Get(ChunkSize4K + 1)
	})
}

func TestReleaseChunks(t *testing.T) {
	list := []int{1, 2, 3, 4, 5}
	kept, released := releaseChunks(list, 4)
	if len(kept) != 3 || kept[0] != 3 || kept[2] != 5 {
		t.Errorf("expected kept [3 4 5], got %v", kept)
	}
	if len(released) != 2 || released[0] != 1 || released[1] != 2 {
		t.Errorf("expected released [1 2], got %v", released)
	}

	kept, released = releaseChunks([]int{1, 2}, 4)
	if len(kept) != 2 || released != nil {
		t.Errorf("expected list under threshold to be untouched, got %v and %v", kept, released)
	}
}
