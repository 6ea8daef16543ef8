package logutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, expected := range cases {
		assert.Equal(t, expected, ParseLevel(in), "level %q", in)
	}
}

func TestNewConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer := New(Config{Level: "warn"}, &console)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "key=value")
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segbench.log")
	config := DefaultConfig()
	config.File = path
	config.Format = "json"

	var console bytes.Buffer
	logger, closer := New(config, &console)
	logger.Info("stream closed", "bytes", 4096)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, console.Bytes(), data, "expected console and file to receive the same records")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "stream closed", record["msg"])
	assert.Equal(t, float64(4096), record["bytes"])
}
