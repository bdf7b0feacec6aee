package logtrace

import (
	"context"
)

// requestIdContextKey is a custom type for context key to store request IDs.
type requestIdContextKey string

const requestIdKey = requestIdContextKey("requestId")

// ContextWithRequestId returns a child context carrying the request ID.
func ContextWithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey, requestId)
}

// RequestIdFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or carries no request ID.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdKey).(string)
	if !ok {
		return ""
	}
	return r
}
