// Package bench drives concurrent stream workloads against shared pools.
package bench

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/holmberd/go-segstream"
	"github.com/holmberd/go-segstream/internal/logutil"
	"gopkg.in/yaml.v3"
)

// Profile describes a workload. It is loaded from YAML.
type Profile struct {
	Workers int `yaml:"workers"` // Concurrent streams.
	Streams int `yaml:"streams"` // Total streams to run.

	MinCapacity int64 `yaml:"min_capacity"`
	MaxCapacity int64 `yaml:"max_capacity"`
	StreamSize  int64 `yaml:"stream_size"` // Bytes written per stream.
	WriteSize   int   `yaml:"write_size"`  // Bytes per Write call.
	Trim        bool  `yaml:"trim"`        // Truncate to half and trim before closing.

	ShellPoolSize int         `yaml:"shell_pool_size"`
	Prewarm       map[int]int `yaml:"prewarm"` // Chunk size to number of chunks mapped up front.

	MetricsAddr string         `yaml:"metrics_addr"`
	Log         logutil.Config `yaml:"log"`
}

func DefaultProfile() Profile {
	return Profile{
		Workers:       4,
		Streams:       1000,
		MaxCapacity:   16 * segstream.MiB,
		StreamSize:    1 * segstream.MiB,
		WriteSize:     4 * segstream.KiB,
		Trim:          true,
		ShellPoolSize: segstream.DefaultShellPoolSize,
		Log:           logutil.DefaultConfig(),
	}
}

// LoadProfile reads a YAML profile on top of the defaults. An empty path yields
// the defaults. Unknown keys are rejected.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read profile: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, p.Validate()
}

func (p Profile) Validate() error {
	var errs []error
	if p.Workers <= 0 {
		errs = append(errs, fmt.Errorf("invalid profile: workers %d must be positive", p.Workers))
	}
	if p.Streams < 0 {
		errs = append(errs, fmt.Errorf("invalid profile: streams %d must not be negative", p.Streams))
	}
	if p.WriteSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid profile: write_size %d must be positive", p.WriteSize))
	}
	if p.StreamSize < 0 || p.StreamSize > p.MaxCapacity {
		errs = append(errs, fmt.Errorf(
			"invalid profile: stream_size %d must be between 0 and max_capacity %d", p.StreamSize, p.MaxCapacity,
		))
	}
	if p.ShellPoolSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid profile: shell_pool_size %d must be positive", p.ShellPoolSize))
	}
	for size, n := range p.Prewarm {
		if !segstream.DefaultChunkPool().IsSupported(size) {
			errs = append(errs, fmt.Errorf("invalid profile: prewarm chunk size %d is not supported", size))
		}
		if n < 0 {
			errs = append(errs, fmt.Errorf("invalid profile: prewarm count %d for size %d must not be negative", n, size))
		}
	}
	if err := p.streamConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p Profile) streamConfig() segstream.Config {
	return segstream.Config{MinCapacity: p.MinCapacity, MaxCapacity: p.MaxCapacity}
}
