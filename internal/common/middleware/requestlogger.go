// Package middleware provides HTTP middleware components for request logging,
// timeout handling, and panic recovery. It integrates with zerolog for
// structured logging and supports request tracing through unique request IDs.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/logtrace"
	"github.com/inkform/inkform/internal/common/uuid"
)

const RequestIDHeader = "X-Inkform-Request-ID"

// RequestLogger creates middleware that logs incoming requests and adds a
// unique request ID to both the request context and response headers. The
// request-scoped zerolog logger carries the request ID on every line.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := uuid.New().String()
		ctx = logtrace.ContextWithRequestId(ctx, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)

		requestFields := map[string]any{
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
		}
		log.Ctx(ctx).Info().Fields(requestFields).Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
