// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so call sites share one handler chain.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger = NewLogger(os.Stdout, os.Getenv("LOG_LEVEL"))

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key carrying a per-connection correlation id.
const CorrelationID LogContextKey = "correlation_id"

// correlationHandler stamps records with the correlation id found in ctx.
type correlationHandler struct {
	slog.Handler
}

func (h correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := ExtractCorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return correlationHandler{h.Handler.WithAttrs(attrs)}
}

func (h correlationHandler) WithGroup(name string) slog.Handler {
	return correlationHandler{h.Handler.WithGroup(name)}
}

// NewLogger writes JSON records to w. level is debug, info, warn or error;
// anything else means info.
func NewLogger(w io.Writer, level string) *Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{Logger: slog.New(correlationHandler{handler})}
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// RepoLogger logs persistence events for one table.
type RepoLogger struct {
	table string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

// LogWrite logs a mutation at debug level.
func (l *RepoLogger) LogWrite(ctx context.Context, operation string, fields map[string]any) {
	attrs := make([]slog.Attr, 0, len(fields)+2)
	attrs = append(attrs, slog.String("table", l.table), slog.String("operation", operation))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.LogAttrs(ctx, slog.LevelDebug, "repository write", attrs...)
}

// LogError logs a failed query.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	GlobalLogger.LogAttrs(ctx, slog.LevelError, "repository error",
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// WSLogger logs session events for one hub.
type WSLogger struct {
	hub string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hub string) *WSLogger {
	return &WSLogger{hub: hub}
}

func (l *WSLogger) log(ctx context.Context, level slog.Level, msg string, userID uint, attrs ...slog.Attr) {
	base := []slog.Attr{slog.String("hub", l.hub)}
	if userID != 0 {
		base = append(base, slog.Uint64("user_id", uint64(userID)))
	}
	GlobalLogger.LogAttrs(ctx, level, msg, append(base, attrs...)...)
}

// LogConnect logs a bound session.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint, connID string) {
	l.log(ctx, slog.LevelInfo, "websocket connected", userID, slog.String("conn_id", connID))
}

// LogDisconnect logs a released session.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, connID, reason string) {
	l.log(ctx, slog.LevelInfo, "websocket disconnected", userID,
		slog.String("conn_id", connID), slog.String("reason", reason))
}

// LogError logs a failed inbound event.
func (l *WSLogger) LogError(ctx context.Context, userID uint, eventType string, err error) {
	l.log(ctx, slog.LevelWarn, "websocket event failed", userID,
		slog.String("event_type", eventType), slog.String("error", err.Error()))
}

// LogLifecycle logs a hub-wide event such as shutdown.
func (l *WSLogger) LogLifecycle(ctx context.Context, event string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, "websocket lifecycle", 0, append([]slog.Attr{slog.String("event", event)}, attrs...)...)
}
