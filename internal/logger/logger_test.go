package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.Info("submission accepted")

	assert.Contains(t, buf.String(), "submission accepted")
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{"production uses json", "production", true},
		{"development uses pretty", "development", false},
		{"empty uses pretty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(Config{Environment: tt.environment, Writer: &buf}).Info("hello")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"hello"`)
			} else {
				assert.Contains(t, buf.String(), "INF")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	r := slog.NewRecord(time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC), slog.LevelWarn, "upstream slow", 0)
	r.AddAttrs(slog.Duration("took", 2*time.Second), slog.String("path", "/api/v1/production-locations/"))
	assert.NoError(t, h.Handle(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, "09:30:00")
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "upstream slow")
	assert.Contains(t, out, "took=2s")
	assert.Contains(t, out, "path=/api/v1/production-locations/")
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = NewPrettyHandler(&buf, nil)
	h = h.WithAttrs([]slog.Attr{slog.String("component", "tracker")}).WithGroup("req")

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "polled", 0)
	r.AddAttrs(slog.Int("count", 3))
	assert.NoError(t, h.Handle(context.Background(), r))

	assert.Contains(t, buf.String(), "req.component=tracker")
	assert.Contains(t, buf.String(), "req.count=3")
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestFormatValue_QuotesSpaces(t *testing.T) {
	assert.Equal(t, `"Test Name"`, formatValue(slog.StringValue("Test Name")))
	assert.Equal(t, "US", formatValue(slog.StringValue("US")))
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Writer: &buf})

	logger.WithSession("ses-1").WithModeration("mod-1").WithError(errors.New("boom")).Info("failed")
	logger.Component("oshub").Info("ready")

	out := buf.String()
	assert.Contains(t, out, `"session_id":"ses-1"`)
	assert.Contains(t, out, `"moderation_id":"mod-1"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"component":"oshub"`)
}

func TestContextLogger(t *testing.T) {
	fallback := Discard().Logger
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	scoped := Discard().With("request_id", "r1")
	ctx := IntoContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
