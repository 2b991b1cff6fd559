package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("beam", "inner")).Warn(context.Background(), "peak search best effort",
		Float64("freq_error_hz", 12.5), Int("passes", 10), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["level"] != "WARN" || rec["beam"] != "inner" || rec["passes"] != float64(10) || rec["error"] != "boom" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
}

func TestRunIDHelpers(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" || RunIDFromContext(ctx) != id {
		t.Fatalf("run id not stored: %q", id)
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRunID replaced existing id %q with %q", id, id2)
	}
}

func TestContextLogger(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatal("expected nil logger on empty context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatal("expected noop logger stored for nil input")
	}
}
