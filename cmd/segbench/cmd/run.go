package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/holmberd/go-segstream/internal/bench"
	"github.com/holmberd/go-segstream/internal/logutil"
	"github.com/holmberd/go-segstream/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const metricsNamespace = "segstream"

var (
	workers     int
	streams     int
	metricsAddr string
	logLevel    string
	linger      time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a stream workload and report throughput",
	RunE:  runBench,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent streams (overrides the profile)")
	runCmd.Flags().IntVar(&streams, "streams", 0, "Total streams (overrides the profile)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	runCmd.Flags().DurationVar(&linger, "linger", 0, "Keep serving metrics for this long after the run")
}

// loadProfile reads the profile and applies the flags set on cmd.
func loadProfile(cmd *cobra.Command) (bench.Profile, error) {
	p, err := bench.LoadProfile(profileFile)
	if err != nil {
		return p, err
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		p.Workers = workers
	}
	if flags.Changed("streams") {
		p.Streams = streams
	}
	if flags.Changed("metrics-addr") {
		p.MetricsAddr = metricsAddr
	}
	if flags.Changed("log-level") {
		p.Log.Level = logLevel
	}
	return p, p.Validate()
}

func runBench(cmd *cobra.Command, args []string) error {
	p, err := loadProfile(cmd)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	logger, closer := logutil.New(p.Log, os.Stderr)
	defer closer.Close()

	reg := prometheus.NewRegistry()
	workload, err := metrics.NewWorkload(metricsNamespace, reg)
	if err != nil {
		return err
	}
	r, err := bench.NewRunner(p, workload, logger)
	if err != nil {
		return err
	}
	reg.MustRegister(
		metrics.NewPoolCollector(metricsNamespace, r.Pool(), r.Shells()),
		collectors.NewGoCollector(),
	)

	ctx := cmd.Context()
	if p.MetricsAddr != "" {
		stop, err := serveMetrics(p.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	logger.Info(
		"starting run",
		"workers", p.Workers,
		"streams", p.Streams,
		"stream_size", p.StreamSize,
		"write_size", p.WriteSize,
	)
	res, err := r.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "streams: %d\nbytes: %d\nduration: %s\nthroughput: %.2f MB/s\n",
		res.Streams, res.Bytes, res.Duration, res.Throughput()/1e6)

	if p.MetricsAddr != "" && linger > 0 {
		select {
		case <-time.After(linger):
		case <-ctx.Done():
		}
	}
	return nil
}

// serveMetrics starts a /metrics endpoint and returns a function that shuts it down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down metrics server", "error", err)
		}
	}, nil
}
