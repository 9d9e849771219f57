package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// AttrsFromCtx отдает trace_id/span_id, если в ctx есть валидный span.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

// FromCtx добавляет trace-атрибуты к log.
func FromCtx(ctx context.Context, log *slog.Logger) *slog.Logger {
	if log == nil {
		log = L()
	}
	attrs := AttrsFromCtx(ctx)
	if len(attrs) == 0 {
		return log
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return log.With(args...)
}
