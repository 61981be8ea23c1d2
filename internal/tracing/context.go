package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// ContactIDKey is the context key for the conversation participant
	ContactIDKey ContextKey = "contact_id"
	// MessageIDKey is the context key for the inbound provider message ID
	MessageIDKey ContextKey = "message_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	ContactID string
	MessageID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithContactID adds a contact ID to the context
func WithContactID(ctx context.Context, contactID string) context.Context {
	return context.WithValue(ctx, ContactIDKey, contactID)
}

// WithMessageID adds an inbound message ID to the context
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetContactID retrieves the contact ID from the context
func GetContactID(ctx context.Context) string {
	if contactID, ok := ctx.Value(ContactIDKey).(string); ok {
		return contactID
	}
	return ""
}

// GetMessageID retrieves the message ID from the context
func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		ContactID: GetContactID(ctx),
		MessageID: GetMessageID(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}
