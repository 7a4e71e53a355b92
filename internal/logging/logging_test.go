package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONIncludesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "kathaghar", Version: "1.2.3", Output: &buf})

	logger.Info("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "kathaghar", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "kathaghar", Format: "text", Output: &buf})

	logger.Info("plain message")

	assert.Contains(t, buf.String(), "plain message")
	assert.Contains(t, buf.String(), "service=kathaghar")
}

func TestSetup_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Level: "warn", Output: &buf})

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestHandler_AddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "kathaghar", Output: &buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext_OmitsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Output: &buf})

	logger.Info("untraced")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsKeepsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "kathaghar", Output: &buf}).With("component", "auth")

	logger.Info("scoped")

	entry := decode(t, &buf)
	assert.Equal(t, "auth", entry["component"])
	assert.Equal(t, "kathaghar", entry["service"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), "level %q", name)
	}
}

func TestLogError_OopsErrorCarriesCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("AUTH_LOOKUP_FAILED").With("operation", "get user by email").Errorf("boom")
	LogError(context.Background(), logger, "authorize failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "authorize failed", entry["msg"])
	assert.Equal(t, "AUTH_LOOKUP_FAILED", entry["code"])
	assert.Contains(t, entry, "context")
}

func TestLogError_PlainError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogError(context.Background(), logger, "failed", errors.New("plain"))

	entry := decode(t, &buf)
	assert.Contains(t, entry["error"], "plain")
	assert.NotContains(t, entry, "code")
}
