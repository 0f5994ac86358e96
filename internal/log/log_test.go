package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	t.Setenv("GO_ENV", "")
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown", "id", "0")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "id=0")
}

func TestNew_JSONInProduction(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	var buf bytes.Buffer
	New(&buf, "info").Info("opened", "id", "0")
	assert.JSONEq(t, `{"level":"INFO","msg":"opened","id":"0"}`, stripTime(t, buf.Bytes()))
}

func stripTime(t *testing.T, line []byte) string {
	t.Helper()
	// slog always writes the time first: {"time":"...","level":...
	i := bytes.Index(line, []byte(`"level"`))
	if i < 0 {
		t.Fatalf("no level in %s", line)
	}
	return "{" + string(bytes.TrimSpace(line[i:]))
}
