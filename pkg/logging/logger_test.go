package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, level Level) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return NewLogger(&Config{
		Level:       level,
		ServiceName: "skyfeed-test",
		Environment: "testing",
		JSONFormat:  true,
		Output:      buf,
	}), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out), "output: %s", buf.String())
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, "skyfeed", cfg.ServiceName)
	assert.False(t, cfg.JSONFormat)
	assert.NotNil(t, NewLogger(nil))
}

func TestLogger_JSONFormat(t *testing.T) {
	log, buf := newJSONLogger(t, LevelDebug)
	log.Info("feed served", F("feed", "blend"), F("items", 14))

	out := decodeLine(t, buf)
	assert.Equal(t, "feed served", out["message"])
	assert.Equal(t, "info", out["level"])
	assert.Equal(t, "skyfeed-test", out["service_name"])
	assert.Equal(t, "testing", out["environment"])
	assert.Equal(t, "blend", out["feed"])
	assert.EqualValues(t, 14, out["items"])
	assert.Contains(t, out, "time")
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, buf := newJSONLogger(t, LevelWarn)

	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Equal(t, "warn", decodeLine(t, buf)["level"])

	buf.Reset()
	log.Error("shown")
	assert.Equal(t, "error", decodeLine(t, buf)["level"])
}

func TestLogger_FieldTypes(t *testing.T) {
	log, buf := newJSONLogger(t, LevelInfo)
	log.Info("types",
		F("s", "x"),
		F("b", true),
		F("f", 1.5),
		F("d", 2*time.Second),
		F("list", []string{"hour", "day"}),
		Err(errors.New("boom")),
	)

	out := decodeLine(t, buf)
	assert.Equal(t, "x", out["s"])
	assert.Equal(t, true, out["b"])
	assert.Equal(t, 1.5, out["f"])
	assert.Contains(t, out, "d")
	assert.Equal(t, []any{"hour", "day"}, out["list"])
	assert.Equal(t, "boom", out["error"])
}

func TestLogger_With(t *testing.T) {
	log, buf := newJSONLogger(t, LevelInfo)
	child := log.With(F("component", "feedgen"), Err(errors.New("stale")))
	child.Info("reloaded")

	out := decodeLine(t, buf)
	assert.Equal(t, "feedgen", out["component"])
	assert.Equal(t, "stale", out["error"])
}

func TestLogger_WithContext(t *testing.T) {
	log, buf := newJSONLogger(t, LevelInfo)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTraceID(ctx, "trace-1")
	log.WithContext(ctx).Info("handled")

	out := decodeLine(t, buf)
	assert.Equal(t, "req-1", out["request_id"])
	assert.Equal(t, "trace-1", out["trace_id"])

	buf.Reset()
	log.WithContext(context.Background()).Info("bare")
	out = decodeLine(t, buf)
	assert.NotContains(t, out, "request_id")
	assert.NotContains(t, out, "trace_id")
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, ServiceName: "skyfeed", Output: buf})
	log.Info("console message", F("k", "v"))

	assert.Contains(t, buf.String(), "console message")
	assert.Error(t, json.Unmarshal(buf.Bytes(), &map[string]any{}))
}

func TestRequestIDs(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, a, RequestID(WithRequestID(context.Background(), a)))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestGlobal(t *testing.T) {
	prev := global
	t.Cleanup(func() { global = prev })

	global = nil
	assert.NotNil(t, MustGlobal())

	nop := NewNopLogger()
	SetGlobal(nop)
	assert.Equal(t, nop, MustGlobal())
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.Info("ignored", F("k", "v"))
	assert.Equal(t, log, log.With(F("a", 1)))
	assert.Equal(t, log, log.WithContext(context.Background()))
}
