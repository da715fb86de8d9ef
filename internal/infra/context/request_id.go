package context

import (
	"context"
)

type contextKey string

const contextKeyRequestID = contextKey("requestID")

// RequestIDFromContext extracts the request ID from the context.
// Returns the request ID and true if present, or empty string and false if not present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(contextKeyRequestID).(string)

	return requestID, ok
}

// WithRequestID creates a new context with the given request ID value.
// The request ID correlates a client call with the backend's logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
