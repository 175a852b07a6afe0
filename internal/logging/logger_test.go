package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestConsoleFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Stderr: &buf, Service: "test"})

	l.Slog().Info("hidden")
	l.Slog().Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "service=test")
	assert.Empty(t, l.Path())
}

func TestFileLoggingWritesJSON(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Level: slog.LevelDebug, Dir: dir, Service: "watch", Quiet: true})

	l.Slog().Debug("decoded", "kind", "Gap")
	require.NoError(t, l.Close())

	path := l.Path()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, dir))
	assert.Contains(t, path, "watch_")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "Gap", rec["kind"])
	assert.Equal(t, "watch", rec["service"])
}

func TestConsoleAndFileBothReceive(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Dir: t.TempDir(), Stderr: &buf})
	l.Slog().Info("both")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "both")
	assert.Contains(t, buf.String(), "both")
}

func TestCloseIsIdempotent(t *testing.T) {
	l := New(Config{Dir: t.TempDir(), Quiet: true})
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}
