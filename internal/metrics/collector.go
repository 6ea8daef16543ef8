// Package metrics exposes stream pool and workload metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/holmberd/go-segstream"
	"github.com/prometheus/client_golang/prometheus"
)

// ChunkStatser is implemented by [segstream.ChunkPool].
type ChunkStatser interface {
	Stats() segstream.ChunkPoolStats
	Sizes() []int
}

// ShellStatser is implemented by [segstream.ShellStack].
type ShellStatser interface {
	Stats() segstream.ShellStackStats
}

// PoolCollector is a prometheus.Collector that reports chunk pool and shell
// free-list counters at scrape time.
type PoolCollector struct {
	chunks ChunkStatser
	shells ShellStatser

	chunkRents     *prometheus.Desc
	chunkReturns   *prometheus.Desc
	chunkOversized *prometheus.Desc
	chunkMapped    *prometheus.Desc
	chunkUnmapped  *prometheus.Desc
	chunkFree      *prometheus.Desc

	shellHits      *prometheus.Desc
	shellMisses    *prometheus.Desc
	shellRecycled  *prometheus.Desc
	shellDiscarded *prometheus.Desc
	shellFree      *prometheus.Desc
	shellCapacity  *prometheus.Desc
}

// NewPoolCollector creates a collector over the given pools. Either may be nil.
func NewPoolCollector(namespace string, chunks ChunkStatser, shells ShellStatser) *PoolCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &PoolCollector{
		chunks: chunks,
		shells: shells,

		chunkRents:     desc("chunk_rents_total", "Total number of blocks rented from the chunk pool"),
		chunkReturns:   desc("chunk_returns_total", "Total number of chunks returned to the chunk pool"),
		chunkOversized: desc("chunk_oversized_total", "Total number of rents served from the Go heap"),
		chunkMapped:    desc("chunk_mapped_total", "Total number of chunks mapped"),
		chunkUnmapped:  desc("chunk_unmapped_total", "Total number of chunks unmapped"),
		chunkFree:      desc("chunk_free", "Number of free chunks held by the pool", "size"),

		shellHits:      desc("shell_hits_total", "Total number of segment shells reused"),
		shellMisses:    desc("shell_misses_total", "Total number of shell requests that found the free-list empty"),
		shellRecycled:  desc("shell_recycled_total", "Total number of shells accepted by the free-list"),
		shellDiscarded: desc("shell_discarded_total", "Total number of shells refused by the free-list"),
		shellFree:      desc("shell_free", "Approximate number of shells held by the free-list"),
		shellCapacity:  desc("shell_capacity", "Capacity of the shell free-list"),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.chunkRents, c.chunkReturns, c.chunkOversized, c.chunkMapped, c.chunkUnmapped, c.chunkFree,
		c.shellHits, c.shellMisses, c.shellRecycled, c.shellDiscarded, c.shellFree, c.shellCapacity,
	} {
		ch <- d
	}
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.chunks != nil {
		s := c.chunks.Stats()
		counter(ch, c.chunkRents, s.Rents)
		counter(ch, c.chunkReturns, s.Returns)
		counter(ch, c.chunkOversized, s.Oversized)
		counter(ch, c.chunkMapped, s.Mapped)
		counter(ch, c.chunkUnmapped, s.Unmapped)
		for i, size := range c.chunks.Sizes() {
			ch <- prometheus.MustNewConstMetric(
				c.chunkFree, prometheus.GaugeValue, float64(s.Free[i]), strconv.Itoa(size),
			)
		}
	}
	if c.shells != nil {
		s := c.shells.Stats()
		counter(ch, c.shellHits, s.Hits)
		counter(ch, c.shellMisses, s.Misses)
		counter(ch, c.shellRecycled, s.Recycled)
		counter(ch, c.shellDiscarded, s.Discarded)
		ch <- prometheus.MustNewConstMetric(c.shellFree, prometheus.GaugeValue, float64(s.Len))
		ch <- prometheus.MustNewConstMetric(c.shellCapacity, prometheus.GaugeValue, float64(s.Cap))
	}
}

func counter(ch chan<- prometheus.Metric, d *prometheus.Desc, v uint64) {
	ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
}

// Workload records the outcome of stream operations driven by a load generator.
type Workload struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	streamBytes prometheus.Histogram
}

// NewWorkload creates the workload metrics and registers them with reg.
func NewWorkload(namespace string, reg prometheus.Registerer) (*Workload, error) {
	w := &Workload{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of stream operations",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Stream operation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"op"},
		),
		streamBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stream_size_bytes",
				Help:      "Length of streams when closed",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
	}
	for _, c := range []prometheus.Collector{w.operations, w.duration, w.streamBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Observe records one operation that started at start.
func (w *Workload) Observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	w.operations.WithLabelValues(op, result).Inc()
	w.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveStream records the final length of a stream.
func (w *Workload) ObserveStream(length int64) {
	w.streamBytes.Observe(float64(length))
}
