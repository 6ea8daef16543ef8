package segstream

import (
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"
)

// GOMAXPROCS=4 go clean -testcache && go test -bench=BenchmarkGrowable -benchtime=10s -benchmem .

const benchStreamSize = 1 * MiB

// BenchmarkGrowableLifecycle simulates short-lived streams that are filled,
// read back and closed, recycling blocks and shells through the shared pools.
func BenchmarkGrowableLifecycle(b *testing.B) {
	payload := pattern(64 * KiB)

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		buf := make([]byte, 4*KiB)
		for pb.Next() {
			g, err := New(0, benchStreamSize)
			if err != nil {
				panic(err)
			}
			if _, err := g.Write(payload); err != nil {
				panic(fmt.Errorf("failed to write: %w", err))
			}
			if _, err := g.Seek(0, io.SeekStart); err != nil {
				panic(err)
			}
			for {
				if _, err := g.Read(buf); err == io.EOF {
					break
				}
			}
			g.Close()
		}
	})
}

// BenchmarkGrowableSmallWrites measures sequential small writes, which take the
// slow path at the end of the stream.
func BenchmarkGrowableSmallWrites(b *testing.B) {
	p := pattern(64)

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		g, err := New(0, benchStreamSize)
		if err != nil {
			panic(err)
		}
		defer g.Close()
		for pb.Next() {
			if g.Len()+int64(len(p)) > benchStreamSize {
				g.Reset()
			}
			if _, err := g.Write(p); err != nil {
				panic(fmt.Errorf("failed to write: %w", err))
			}
		}
	})
}

// BenchmarkGrowableRandomReads simulates random access reads over a filled stream.
func BenchmarkGrowableRandomReads(b *testing.B) {
	payload := pattern(benchStreamSize)

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		// Each goroutine gets its own stream and random number source.
		g, err := New(0, benchStreamSize)
		if err != nil {
			panic(err)
		}
		defer g.Close()
		if _, err := g.Write(payload); err != nil {
			panic(err)
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		buf := make([]byte, 256)
		for pb.Next() {
			if err := g.SetPosition(rng.Int63n(benchStreamSize - int64(len(buf)))); err != nil {
				panic(err)
			}
			if _, err := g.Read(buf); err != nil {
				panic(err)
			}
		}
	})
}

func BenchmarkGrowableReadByte(b *testing.B) {
	g, err := New(0, benchStreamSize)
	if err != nil {
		b.Fatal(err)
	}
	defer g.Close()
	if _, err := g.Write(pattern(benchStreamSize)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if _, err := g.ReadByte(); err == io.EOF {
			g.SetPosition(0)
		}
	}
}
