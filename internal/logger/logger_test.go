package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level LogLevel
		want  int
	}{
		{"trace emits all", LogLevelTrace, 5},
		{"debug", LogLevelDebug, 4},
		{"info", LogLevelInfo, 3},
		{"warn", LogLevelWarn, 2},
		{"error", LogLevelError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := NewSlogLogger(buf, tt.level, time.UTC)

			log.Trace("t")
			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e")

			assert.Len(t, decodeLines(t, buf), tt.want)
		})
	}
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelDebug, time.UTC)
	log := base.Module("transfer").Module("rx").With(String("session", "abc"))

	log.Info("rx started",
		Uint64("frequency_hz", 900_000_000),
		Float64("rate", 1.23456),
		Duration("elapsed", 1500*time.Millisecond),
		Error(os.ErrClosed))

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "rx started", rec["msg"])
	assert.Equal(t, "transfer.rx", rec["module"])
	assert.Equal(t, "abc", rec["session"])
	assert.InDelta(t, 1.235, rec["rate"], 0.0001)
	assert.Equal(t, "1.5s", rec["elapsed"])
	assert.Equal(t, os.ErrClosed.Error(), rec["error"])
}

func TestWithContextRequestID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	log.WithContext(ctx).Info("with request")
	log.WithContext(context.Background()).Info("without request")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "req-1", recs[0]["request_id"])
	assert.NotContains(t, recs[1], "request_id")
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	NewSlogLogger(buf, LogLevelTrace, time.UTC).Log(LogLevelTrace, "deep")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "TRACE", recs[0]["level"])
}

func TestCentralLoggerModuleFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	modulePath := filepath.Join(dir, "recorder.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: filepath.Join(dir, "main.log"), Level: "info"},
		ModuleOutputs: map[string]ModuleOutput{
			"recorder": {Enabled: true, FilePath: modulePath, Level: "debug"},
		},
	})
	require.NoError(t, err)

	cl.Module("recorder").Debug("drained", Int("bytes", 4096))
	cl.Module("transfer").Info("opened")

	require.NoError(t, cl.Close())

	moduleLog, err := os.ReadFile(modulePath) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(moduleLog), `"msg":"drained"`)
	assert.NotContains(t, string(moduleLog), "opened")

	mainLog, err := os.ReadFile(filepath.Join(dir, "main.log")) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(mainLog), `"module":"transfer"`)
}

func TestNewCentralLoggerRejectsNil(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestCentralLoggerConsoleWriter(t *testing.T) {
	t.Parallel()

	console := &bytes.Buffer{}
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: true, Level: "info"},
		FileOutput:   &FileOutput{Enabled: false},
		ModuleLevels: map[string]string{"sim": "warn"},
	}, WithConsoleWriter(console))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	cl.Module("transfer").Info("rx started", Uint64("frequency_hz", 900_000_000))
	cl.Module("transfer").Debug("below console level")
	cl.Module("sim").Info("below module level")

	out := console.String()
	assert.Contains(t, out, "rx started")
	assert.Contains(t, out, "module=transfer")
	assert.Contains(t, out, "frequency_hz=900000000")
	assert.NotContains(t, out, "below console level")
	assert.NotContains(t, out, "below module level")
	assert.NotContains(t, out, "time=", "console output carries no timestamp")
}

func TestCentralLoggerModuleIsShared(t *testing.T) {
	t.Parallel()

	cl, err := NewCentralLogger(&LoggingConfig{Console: &ConsoleOutput{Enabled: false}},
		WithConsoleWriter(&bytes.Buffer{}))
	require.NoError(t, err)

	assert.Same(t, cl.Module("recorder"), cl.Module("recorder"))
	assert.NotSame(t, cl.Module("recorder"), cl.Module("recorder").Module("sink"))
}

func TestFanoutHandler(t *testing.T) {
	t.Parallel()

	info, debug := &bytes.Buffer{}, &bytes.Buffer{}
	h := newFanoutHandler(
		newJSONHandler(info, slog.LevelInfo, time.UTC),
		nil,
		newJSONHandler(debug, slog.LevelDebug, time.UTC),
	)
	log := slog.New(h).With("stream", "rx")

	log.Debug("queued", "bytes", 16384)
	log.Info("dropped", "count", 1)

	assert.Len(t, decodeLines(t, info), 1)
	recs := decodeLines(t, debug)
	require.Len(t, recs, 2)
	assert.Equal(t, "rx", recs[0]["stream"])
	assert.Equal(t, "rx", recs[1]["stream"])

	assert.Equal(t, slog.DiscardHandler, newFanoutHandler(nil))
}
