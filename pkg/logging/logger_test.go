package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("route-pricing", "test", InfoLevel)
	logger.SetOutput(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.Info(ctx, "[QUOTE] Quote assembled", Fields{"route": "PL50->DE10", "sources": 2})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	checks := map[string]interface{}{
		"message":    "[QUOTE] Quote assembled",
		"level":      "info",
		"service":    "route-pricing",
		"request_id": "req-1",
		"route":      "PL50->DE10",
		"sources":    float64(2),
	}
	for k, want := range checks {
		if e[k] != want {
			t.Errorf("%s = %v, want %v", k, e[k], want)
		}
	}
}

func TestStructuredLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("route-pricing", "test", WarnLevel)
	logger.SetOutput(&buf)

	logger.Debug(context.Background(), "debug", nil)
	logger.Info(context.Background(), "info", nil)
	logger.Warn(context.Background(), "warn", nil)

	if got := len(decodeLines(t, &buf)); got != 1 {
		t.Errorf("entries = %v, want %v", got, 1)
	}

	buf.Reset()
	logger.SetLevel(DebugLevel)
	logger.Debug(context.Background(), "debug", nil)
	if got := len(decodeLines(t, &buf)); got != 1 {
		t.Errorf("entries after SetLevel = %v, want %v", got, 1)
	}
}

func TestErrorCarriesCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("route-pricing", "test", InfoLevel)
	logger.SetOutput(&buf)

	logger.WithFields(Fields{"source": "orders"}).Error(context.Background(), "[AGG] failed", Fields{"window": "30d"}, errors.New("boom"))

	e := decodeLines(t, &buf)[0]
	if e["error"] != "boom" {
		t.Errorf("error = %v, want %v", e["error"], "boom")
	}
	if e["source"] != "orders" || e["window"] != "30d" {
		t.Errorf("merged fields = %v/%v, want orders/30d", e["source"], e["window"])
	}
	file, _ := e["file"].(string)
	if !strings.HasSuffix(file, "logger_test.go") {
		t.Errorf("file = %v, want logger_test.go caller", file)
	}
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("route-pricing", "test", InfoLevel)
	logger.SetOutput(&buf)

	code := -1
	exit = func(c int) { code = c }
	defer func() { exit = osExit }()

	logger.Fatal(context.Background(), "[SERVER] dead", nil, errors.New("bind failed"))

	if code != 1 {
		t.Errorf("exit code = %v, want %v", code, 1)
	}
	e := decodeLines(t, &buf)[0]
	if _, ok := e["stack_trace"]; !ok {
		t.Error("fatal entry should carry a stack trace")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
