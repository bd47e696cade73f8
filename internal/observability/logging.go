// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key for the id that ties together the log
// lines of one maintenance run or request.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
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

// MutationLogger writes one structured line per state-changing operation.
type MutationLogger struct {
	component string
	logger    *slog.Logger
}

// NewMutationLogger creates a MutationLogger for a component.
func NewMutationLogger(base *slog.Logger, component string) *MutationLogger {
	if base == nil {
		base = slog.Default()
	}
	return &MutationLogger{component: component, logger: base}
}

// Applied logs a mutation that changed state.
func (l *MutationLogger) Applied(ctx context.Context, operation string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, "mutation applied", operation, attrs)
}

// Noop logs an idempotent call that found the target already in place.
func (l *MutationLogger) Noop(ctx context.Context, operation string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, "mutation no-op", operation, attrs)
}

// Failed logs a mutation that was rolled back.
func (l *MutationLogger) Failed(ctx context.Context, operation string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	l.log(ctx, slog.LevelWarn, "mutation failed", operation, attrs)
}

func (l *MutationLogger) log(ctx context.Context, level slog.Level, msg, operation string, attrs []slog.Attr) {
	base := []slog.Attr{
		slog.String("component", l.component),
		slog.String("operation", operation),
	}
	if id := ExtractCorrelationID(ctx); id != "" {
		base = append(base, slog.String("correlation_id", id))
	}
	l.logger.LogAttrs(ctx, level, msg, append(base, attrs...)...)
}
