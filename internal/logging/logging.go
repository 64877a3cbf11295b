// Package logging carries request-scoped logging concerns for the HTTP
// boundary: trace IDs propagated through context and the access-log line.
package logging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/plusmaps/atlas/pkg/logger"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// NewTraceID returns a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace ID on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID stored on the context, or "" when absent.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes access and security log lines enriched with the trace ID.
type Logger struct {
	log *logger.Logger
}

// New constructs a request logger.
func New(log *logger.Logger) *Logger {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &Logger{log: log}
}

// LogRequest writes one access-log line for a completed request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.log.WithFields(map[string]any{
		"trace_id":    TraceID(ctx),
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("request completed")
}

// LogSecurityEvent writes one line for a policy decision such as a rejected
// origin or an exhausted rate limit.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]any) {
	fields := map[string]any{
		"trace_id": TraceID(ctx),
		"event":    event,
	}
	for k, v := range details {
		fields[k] = v
	}
	l.log.WithFields(fields).Warn("security event")
}
