package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestComponentAddsAttribute(t *testing.T) {
	t.Setenv("DEBUG", "")
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	InitWriter(&buf, "info")
	Component("history").Info("scanned", "files", 3)

	out := buf.String()
	if !strings.Contains(out, "component=history") || !strings.Contains(out, "files=3") {
		t.Errorf("unexpected log line: %q", out)
	}
}
