package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufferHandler(buf *bytes.Buffer, level slog.Level) *TerminalHandler {
	return newTerminalHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestTerminalHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferHandler(&buf, slog.LevelDebug)

	ts := time.Date(2026, 3, 2, 9, 15, 30, 500000000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "queue worker started", 0)
	r.AddAttrs(slog.String("jobId", "01JF3Z"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"09:15:30.500", "INF", "queue worker started", "jobId=", "01JF3Z"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestTerminalHandlerLevels(t *testing.T) {
	tests := []struct {
		level slog.Level
		tag   string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			var buf bytes.Buffer
			h := newBufferHandler(&buf, slog.LevelDebug)

			r := slog.NewRecord(time.Now(), tt.level, "msg", 0)
			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.tag) {
				t.Errorf("expected %s in output, got: %s", tt.tag, buf.String())
			}
		})
	}
}

func TestTerminalHandlerColourCodes(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferHandler(&buf, slog.LevelDebug)

	r := slog.NewRecord(time.Now(), slog.LevelError, "ingest failed", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, ansiRed) {
		t.Error("expected red colour for ERROR level")
	}
	if !strings.Contains(output, ansiBold) {
		t.Error("expected bold message")
	}
	if !strings.Contains(output, ansiReset) {
		t.Error("expected reset code")
	}
}

func TestTerminalHandlerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newBufferHandler(&buf, slog.LevelWarn))

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
}

func TestTerminalHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferHandler(&buf, slog.LevelDebug)

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "worker")})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "job completed", 0)
	r.AddAttrs(slog.Int("attempt", 2))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"component=", "worker", "attempt="} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestTerminalHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferHandler(&buf, slog.LevelDebug)

	h2 := h.WithGroup("http")

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "request completed", 0)
	r.AddAttrs(slog.String("method", "POST"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !strings.Contains(buf.String(), "http.method=") {
		t.Errorf("expected grouped attr http.method, got: %s", buf.String())
	}
}

func TestTerminalHandlerGroupAttr(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferHandler(&buf, slog.LevelDebug)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	r.AddAttrs(slog.Group("queue",
		slog.String("operation", "ingest"),
		slog.Int("attempts", 1),
	))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "queue.operation=") || !strings.Contains(output, "queue.attempts=") {
		t.Errorf("expected grouped queue attrs, got: %s", output)
	}
}

func TestTerminalHandlerQuotesStringsWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferHandler(&buf, slog.LevelDebug)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	r.AddAttrs(slog.String("error", "connection refused"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"connection refused"`) {
		t.Errorf("expected quoted string value, got: %s", buf.String())
	}
}

func TestTerminalHandlerDefaultLevel(t *testing.T) {
	h := newTerminalHandler(&bytes.Buffer{}, nil)

	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default level should be INFO")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("DEBUG should be disabled at default INFO level")
	}
}

func TestTerminalHandlerEmptyGroup(t *testing.T) {
	h := newTerminalHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	if h.WithGroup("") != slog.Handler(h) {
		t.Error("WithGroup with empty name should return the same handler")
	}
}
