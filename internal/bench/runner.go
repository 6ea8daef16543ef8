package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/holmberd/go-segstream"
	"github.com/holmberd/go-segstream/internal/metrics"
	concpool "github.com/sourcegraph/conc/pool"
)

// ErrChecksumMismatch is returned when a stream reads back different bytes than were written.
var ErrChecksumMismatch = errors.New("bench: checksum mismatch")

// Result summarizes a completed run.
type Result struct {
	Streams  int64
	Bytes    int64
	Duration time.Duration
}

// Throughput returns the written bytes per second.
func (r Result) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Duration.Seconds()
}

// Runner executes a profile against one chunk pool and shell free-list.
type Runner struct {
	profile  Profile
	pool     *segstream.ChunkPool
	shells   *segstream.ShellStack
	workload *metrics.Workload // Optional.
	logger   *slog.Logger
}

// NewRunner creates the pools for a profile and pre-warms the chunk pool.
func NewRunner(profile Profile, workload *metrics.Workload, logger *slog.Logger) (*Runner, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	config := segstream.DefaultChunkPoolConfig()
	config.Logger = logger
	r := &Runner{
		profile:  profile,
		pool:     segstream.NewChunkPool(config),
		shells:   segstream.NewShellStack(profile.ShellPoolSize),
		workload: workload,
		logger:   logger,
	}
	for size, n := range profile.Prewarm {
		r.pool.Allocate(size, n)
	}
	return r, nil
}

// Pool returns the chunk pool used by the runner.
func (r *Runner) Pool() *segstream.ChunkPool {
	return r.pool
}

// Shells returns the shell free-list used by the runner.
func (r *Runner) Shells() *segstream.ShellStack {
	return r.shells
}

// Run executes every stream of the profile on a bounded set of workers and stops
// at the first failure.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var (
		streams atomic.Int64
		written atomic.Int64
	)
	start := time.Now()
	pl := concpool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(r.profile.Workers)
	for i := range r.profile.Streams {
		pl.Go(func(ctx context.Context) error {
			n, err := r.runStream(ctx, i)
			if err != nil {
				return fmt.Errorf("stream %d: %w", i, err)
			}
			streams.Add(1)
			written.Add(n)
			return nil
		})
	}
	err := pl.Wait()

	res := Result{Streams: streams.Load(), Bytes: written.Load(), Duration: time.Since(start)}
	r.logger.Info(
		"run finished",
		"streams", res.Streams,
		"bytes", res.Bytes,
		"duration", res.Duration,
		"error", err,
	)
	return res, err
}

// runStream writes a seeded pattern into a fresh stream, verifies it reads back
// unchanged, optionally trims it, and closes it.
func (r *Runner) runStream(ctx context.Context, seed int) (int64, error) {
	config := r.profile.streamConfig()
	config.Pool = r.pool
	config.Shells = r.shells
	config.Logger = r.logger

	g, err := segstream.NewGrowable(config)
	if err != nil {
		return 0, err
	}
	defer func() {
		if r.workload != nil {
			r.workload.ObserveStream(g.Len())
		}
		g.Close()
	}()

	chunk := make([]byte, r.profile.WriteSize)
	want := xxhash.New()
	for g.Len() < r.profile.StreamSize {
		n := min(int64(len(chunk)), r.profile.StreamSize-g.Len())
		fill(chunk[:n], seed, g.Len())
		want.Write(chunk[:n])
		if err := r.observe("write", func() error {
			_, err := g.WriteContext(ctx, chunk[:n])
			return err
		}); err != nil {
			return 0, err
		}
	}

	if err := r.observe("seek", func() error {
		_, err := g.Seek(0, io.SeekStart)
		return err
	}); err != nil {
		return 0, err
	}
	got := xxhash.New()
	if err := r.observe("copy", func() error {
		_, err := g.CopyTo(ctx, got)
		return err
	}); err != nil {
		return 0, err
	}
	if got.Sum64() != want.Sum64() {
		return 0, fmt.Errorf("%w: wrote %x, read %x", ErrChecksumMismatch, want.Sum64(), got.Sum64())
	}

	if r.profile.Trim {
		if err := r.observe("trim", func() error {
			if err := g.SetLength(g.Len() / 2); err != nil {
				return err
			}
			return g.Trim()
		}); err != nil {
			return 0, err
		}
	}
	return r.profile.StreamSize, nil
}

func (r *Runner) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if r.workload != nil {
		r.workload.Observe(op, start, err)
	}
	return err
}

// fill writes the pattern of stream seed starting at offset into b.
func fill(b []byte, seed int, offset int64) {
	for i := range b {
		b[i] = byte((int64(seed) + offset + int64(i)) % 251)
	}
}
