package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/holmberd/go-segstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChunks struct{ stats segstream.ChunkPoolStats }

func (f fakeChunks) Stats() segstream.ChunkPoolStats { return f.stats }
func (f fakeChunks) Sizes() []int                    { return []int{4096, 16384, 65536, 262144, 1048576} }

type fakeShells struct{ stats segstream.ShellStackStats }

func (f fakeShells) Stats() segstream.ShellStackStats { return f.stats }

func TestPoolCollector(t *testing.T) {
	chunks := fakeChunks{segstream.ChunkPoolStats{Rents: 7, Returns: 5, Mapped: 3, Free: [5]int{2, 1}}}
	shells := fakeShells{segstream.ShellStackStats{Hits: 4, Misses: 1, Recycled: 5, Len: 3, Cap: 8}}
	c := NewPoolCollector("segstream", chunks, shells)

	// 5 chunk counters, 5 free gauges, 4 shell counters and 2 shell gauges.
	assert.Equal(t, 16, testutil.CollectAndCount(c))

	expected := `
# HELP segstream_chunk_rents_total Total number of blocks rented from the chunk pool
# TYPE segstream_chunk_rents_total counter
segstream_chunk_rents_total 7
# HELP segstream_shell_free Approximate number of shells held by the free-list
# TYPE segstream_shell_free gauge
segstream_shell_free 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"segstream_chunk_rents_total", "segstream_shell_free")
	require.NoError(t, err)
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP segstream_chunk_free Number of free chunks held by the pool
# TYPE segstream_chunk_free gauge
segstream_chunk_free{size="1048576"} 0
segstream_chunk_free{size="16384"} 1
segstream_chunk_free{size="262144"} 0
segstream_chunk_free{size="4096"} 2
segstream_chunk_free{size="65536"} 0
`), "segstream_chunk_free"))
}

func TestPoolCollectorRealPools(t *testing.T) {
	pool := segstream.NewChunkPool(segstream.DefaultChunkPoolConfig())
	shells := segstream.NewShellStack(4)
	g, err := segstream.NewGrowable(segstream.Config{MaxCapacity: 1 << 20, Pool: pool, Shells: shells})
	require.NoError(t, err)
	_, err = g.Write(make([]byte, 5000))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewPoolCollector("test", pool, shells)))
	n, err := testutil.GatherAndCount(reg, "test_chunk_rents_total", "test_shell_recycled_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP test_shell_recycled_total Total number of shells accepted by the free-list
# TYPE test_shell_recycled_total counter
test_shell_recycled_total 1
`), "test_shell_recycled_total"))
}

func TestPoolCollectorNilPools(t *testing.T) {
	c := NewPoolCollector("segstream", nil, nil)
	assert.Zero(t, testutil.CollectAndCount(c))
}

func TestWorkload(t *testing.T) {
	reg := prometheus.NewRegistry()
	w, err := NewWorkload("bench", reg)
	require.NoError(t, err)

	start := time.Now()
	w.Observe("write", start, nil)
	w.Observe("write", start, nil)
	w.Observe("read", start, errors.New("boom"))
	w.ObserveStream(4096)

	assert.Equal(t, 2.0, testutil.ToFloat64(w.operations.WithLabelValues("write", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.operations.WithLabelValues("read", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(w.duration))
	assert.Equal(t, 1, testutil.CollectAndCount(w.streamBytes))

	_, err = NewWorkload("bench", reg)
	assert.Error(t, err, "expected duplicate registration to fail")
}
