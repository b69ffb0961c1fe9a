// Package middleware provides HTTP middleware for the AirView API.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// requestIDParam lets browser WebSocket clients, which cannot set
// handshake headers, supply a correlation ID.
const requestIDParam = "request_id"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type requestIDKey struct{}

// RequestID attaches a request ID to the context and the response header.
// A client-supplied ID is reused when it is well formed; anything else is
// replaced with a generated one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = r.URL.Query().Get(requestIDParam)
		}
		if !validRequestID.MatchString(requestID) {
			requestID = "req_" + uuid.New().String()[:22]
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// LoggerWithRequestID returns log with the request ID of ctx attached, or
// log unchanged when ctx carries none.
func LoggerWithRequestID(ctx context.Context, log zerolog.Logger) zerolog.Logger {
	id := GetRequestID(ctx)
	if id == "" {
		return log
	}
	return log.With().Str("request_id", id).Logger()
}
