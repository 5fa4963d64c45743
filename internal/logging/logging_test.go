package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"error":   zapcore.ErrorLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.DebugLevel,
		"verbose": zapcore.DebugLevel,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	l := OrNop(nil)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.With("component", "test").Info("discarded", "k", 1)
}

func TestFromZapKeepsFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	FromZap(zap.New(core)).With("component", "batch").Warn("item failed", "index", 3)

	entries := logs.FilterMessage("item failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "batch" || fields["index"] != int64(3) {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
