package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext adds the tracing fields found in ctx to baseLogger
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return baseLogger
	}
	tc := FromContext(ctx)

	logCtx := baseLogger.With()
	if tc.TraceID != "" {
		logCtx = logCtx.Str("trace_id", tc.TraceID)
	}
	if tc.ContactID != "" {
		logCtx = logCtx.Str("contact_id", tc.ContactID)
	}
	if tc.MessageID != "" {
		logCtx = logCtx.Str("message_id", tc.MessageID)
	}
	return logCtx.Logger()
}
