package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		err    error
		want   slog.Level
	}{
		{"ok", "/api/user/profile", 200, nil, slog.LevelInfo},
		{"client error", "/api/auth/login", 401, nil, slog.LevelWarn},
		{"server error", "/api/user/profile", 500, nil, slog.LevelError},
		{"handler error", "/api/user/profile", 200, errors.New("boom"), slog.LevelError},
		{"probe", "/health/live", 200, nil, slog.LevelDebug},
		{"failing probe", "/health/ready", 503, nil, slog.LevelError},
		{"scrape", "/metrics", 200, nil, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestLevel(tt.path, tt.status, tt.err))
		})
	}
}

func TestCtxHandler_AddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&ctxHandler{slog.NewJSONHandler(&buf, nil)}).With("component", "test")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-1")
	ctx = WithUserID(ctx, 7)
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"trace_id":"trace-1"`)
	assert.Contains(t, out, `"user_id":7`)
	assert.Contains(t, out, `"component":"test"`)
}

func TestStructuredLogger_LogsUser(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	Logger = slog.New(&ctxHandler{slog.NewJSONHandler(&buf, nil)})
	t.Cleanup(func() { Logger = prev })

	app := fiber.New()
	app.Use(StructuredLogger())
	app.Get("/api/user/profile", func(c *fiber.Ctx) error {
		c.Locals(UserIDLocal, uint(31))
		return c.Status(fiber.StatusNotFound).SendString("missing")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/user/profile", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"user_id":31`)
	assert.Contains(t, out, `"bytes_out":7`)
}
