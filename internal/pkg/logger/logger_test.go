package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&LogConfig{Level: "info", Format: "json", ServiceName: "agent-portal"}, &buf)

	l.Info("sale finalized", slog.String("sale_id", "SL-2026-0042"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "sale finalized", entry["msg"])
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "SL-2026-0042", entry["sale_id"])
	assert.Equal(t, "agent-portal", entry["service"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&LogConfig{Level: "warn", Format: "json"}, &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&LogConfig{Level: "debug", Format: "json"}, &buf)

	ctx := WithRequestID(context.Background(), "req-123")
	l.InfoContext(ctx, "request handled")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "req-123", RequestIDFrom(ctx))
}

func TestLogger_Sanitization(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		check func(t *testing.T, v any)
	}{
		{
			name: "signature_redacted_by_key",
			attr: slog.String("signature", "data:image/png;base64,AAAA"),
			key:  "signature",
			check: func(t *testing.T, v any) {
				assert.Equal(t, "***REDACTED***", v)
			},
		},
		{
			name: "customer_email_redacted_by_key",
			attr: slog.String("customer_email", "ada@example.com"),
			key:  "customer_email",
			check: func(t *testing.T, v any) {
				assert.Equal(t, "***REDACTED***", v)
			},
		},
		{
			name: "email_inside_value_masked",
			attr: slog.String("note", "contact ada@example.com later"),
			key:  "note",
			check: func(t *testing.T, v any) {
				assert.NotContains(t, v, "ada@example.com")
			},
		},
		{
			name: "plain_value_untouched",
			attr: slog.String("collection", "customers"),
			key:  "collection",
			check: func(t *testing.T, v any) {
				assert.Equal(t, "customers", v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&LogConfig{Level: "info", Format: "json"}, &buf)

			l.Info("event", tt.attr)

			entry := decodeLine(t, &buf)
			tt.check(t, entry[tt.key])
		})
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&LogConfig{Level: "info", Format: "text"}, &buf)

	l.With(slog.String("service", "sync")).Info("pass complete", slog.Int("drained", 3))

	out := buf.String()
	assert.Contains(t, out, "pass complete")
	assert.Contains(t, out, "service=sync")
	assert.Contains(t, out, "drained=3")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
