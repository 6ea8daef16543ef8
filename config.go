package segstream

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

const (
	// DefaultMaxCapacity is the maximum capacity used by [DefaultConfig].
	DefaultMaxCapacity = math.MaxInt32

	// DefaultShellPoolSize is the capacity of the shared segment shell free-list.
	DefaultShellPoolSize = 256
)

type Config struct {
	// MinCapacity is the capacity a stream reserves on construction and keeps across Trim.
	MinCapacity int64

	// MaxCapacity is the hard upper bound on the stream capacity. A zero MaxCapacity
	// yields the shared empty stream.
	MaxCapacity int64

	Pool   LeasePool    // Block allocator; defaults to the shared chunk pool.
	Shells ShellPool    // Segment shell free-list; defaults to the shared shell pool.
	Logger *slog.Logger // Defaults to slog.Default().
}

func (c Config) Validate() error {
	var errs []error
	if c.MinCapacity < 0 {
		errs = append(errs, fmt.Errorf("invalid config: MinCapacity %d must not be negative", c.MinCapacity))
	}
	if c.MaxCapacity < 0 {
		errs = append(errs, fmt.Errorf("invalid config: MaxCapacity %d must not be negative", c.MaxCapacity))
	}
	if c.MinCapacity > c.MaxCapacity {
		errs = append(errs, fmt.Errorf(
			"invalid config: MinCapacity %d must not exceed MaxCapacity %d", c.MinCapacity, c.MaxCapacity,
		))
	}
	return errors.Join(errs...)
}

// withDefaults fills unset collaborators with the shared defaults.
func (c Config) withDefaults() Config {
	if c.Pool == nil {
		c.Pool = DefaultChunkPool()
	}
	if c.Shells == nil {
		c.Shells = DefaultShellPool()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func DefaultConfig() Config {
	return Config{
		MinCapacity: 0,
		MaxCapacity: DefaultMaxCapacity,
	}
}

func DefaultChunkPoolConfig() ChunkPoolConfig {
	return ChunkPoolConfig{
		FreeThresholds: [len(chunkSizes)]int{
			4096, // 16MB
			1024, // 16MB
			512,  // 32MB
			128,  // 32MB
			64,   // 64MB
		},
	}
}
