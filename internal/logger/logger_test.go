package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yunkai-Xiao/MisakiCat/internal/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, "warn", true)

	log.Info("hidden")
	log.Warn("shown", "component", "test")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestPreview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "short", in: "hello", maxLen: 10, want: "hello"},
		{name: "exact", in: "hello", maxLen: 5, want: "hello"},
		{name: "cut", in: "hello world", maxLen: 8, want: "hello..."},
		{name: "multibyte", in: "こんにちは世界", maxLen: 5, want: "こん..."},
		{name: "tiny limit", in: "hello", maxLen: 2, want: "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logger.Preview(tt.in, tt.maxLen))
		})
	}
}
