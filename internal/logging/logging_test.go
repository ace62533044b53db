package logging

import (
	"log"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *strings.Builder {
	t.Helper()
	var buf strings.Builder
	prev := std
	prevLevel := current.Load()
	std = log.New(&buf, "", 0)
	t.Cleanup(func() {
		std = prev
		current.Store(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"error":   LevelError,
		"CRIT":    LevelError,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"":        LevelInfo,
		"info":    LevelInfo,
		"debug":   LevelDebug,
		"trace":   LevelTrace,
		"bogus":   LevelInfo,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestLevelGating(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debug("should not appear")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("Debug logged below the configured level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("Warn was suppressed unexpectedly: %q", out)
	}
}

func TestKeyValuePairsAreFormatted(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelTrace)

	Info("walker step", "shard", "0:8000000000000000", "blocks", 3)

	out := buf.String()
	if !strings.Contains(out, "shard=0:8000000000000000") || !strings.Contains(out, "blocks=3") {
		t.Fatalf("output missing formatted kv pairs: %q", out)
	}
}

func TestOddKeyValueListMarksMissingValue(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelTrace)

	Error("oops", "key_without_value")

	if !strings.Contains(buf.String(), "key_without_value=MISSING") {
		t.Fatalf("output = %q, want MISSING marker for dangling key", buf.String())
	}
}
