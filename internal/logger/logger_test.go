package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad json line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

func TestSlogBridge_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "nbn-facade"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithQueryKind(ctx, "get-records")
	ctx = WithCacheOutcome(ctx, "miss")
	log.InfoContext(ctx, "query served", "records", 3, "err", errors.New("none"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d", len(lines))
	}
	l := lines[0]
	if l["msg"] != "query served" || l["level"] != "info" {
		t.Fatalf("unexpected line %v", l)
	}
	if l["request_id"] != "req-1" || l["query_kind"] != "get-records" || l["cache"] != "miss" {
		t.Fatalf("context fields missing: %v", l)
	}
	if l["service"] != "nbn-facade" || l["records"] != float64(3) || l["err"] != "none" {
		t.Fatalf("attrs missing: %v", l)
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" || lines[0]["level"] != "warn" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestSlogBridge_WithGroupAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl).With("store", "redis").WithGroup("op")

	log.Info("done", "name", "get")

	l := decodeLines(t, &buf)[0]
	if l["store"] != "redis" || l["op.name"] != "get" {
		t.Fatalf("unexpected line %v", l)
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 16 {
		t.Fatalf("id=%q", id)
	}
}
