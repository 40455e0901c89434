package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestConsoleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, LevelInfo)
	logger.nowFn = fixedClock

	logger.Info("page normalized", String("doc_id", "doc-1"), Int("primitives", 4))

	got := buf.String()
	want := "2026-03-01T12:00:00Z INFO page normalized doc_id=doc-1 primitives=4\n"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestConsoleLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, LevelWarn)
	logger.nowFn = fixedClock

	logger.Debug("noise")
	logger.Info("noise")
	logger.Warn("kept")
	logger.Error("kept")

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Errorf("Expected 2 lines, got %d: %q", lines, buf.String())
	}
}

func TestConsoleLoggerWithBindsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewConsoleLogger(&buf, LevelDebug)
	base.nowFn = fixedClock

	bound := base.With(String("doc_id", "doc-1"))
	bound.Debug("hit test", Float64("x", 100.5))

	got := buf.String()
	if !strings.Contains(got, "doc_id=doc-1 x=100.5") {
		t.Errorf("Expected bound field before call field, got %q", got)
	}

	// The parent logger must keep its own field set.
	buf.Reset()
	base.Debug("plain")
	if strings.Contains(buf.String(), "doc_id") {
		t.Errorf("Expected parent logger without bound fields, got %q", buf.String())
	}
}

func TestNopLoggerImplementsLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	logger = logger.With(String("k", "v"))
	logger.Info("ignored", Error("err", nil))
}

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "normalize")
	if ctx2 != ctx {
		t.Fatalf("Expected same context back")
	}
	span.SetTag("doc_id", "doc-1")
	span.SetError(nil)
	span.Finish()
}
