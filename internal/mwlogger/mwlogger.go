// Package mwlogger attaches a request-scoped zerolog logger to every request
package mwlogger

import (
	"context"
	"net/http"

	"github.com/wb-go/wbf/helpers"
	"github.com/wb-go/wbf/zlog"
)

const RequestIDHeader = "X-Request-Id"

type loggerKey struct{}

// NewMWLogger - обёртка: берёт/генерирует request-id, кладёт логгер в контекст и отдаёт id в ответе
func NewMWLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = helpers.CreateUUID()
		}
		w.Header().Set(RequestIDHeader, reqID)

		logger := zlog.Logger.With().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
	})
}

// WithLogger stores logger in ctx for LoggerFromContext.
func WithLogger(ctx context.Context, logger zlog.Zerolog) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithSession enriches the context logger with the session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	logger := LoggerFromContext(ctx).With().Str("session_id", sessionID).Logger()
	return WithLogger(ctx, logger)
}

// LoggerFromContext extracts logger from context - used in service-layer
func LoggerFromContext(ctx context.Context) zlog.Zerolog {
	if l, ok := ctx.Value(loggerKey{}).(zlog.Zerolog); ok {
		return l
	}
	return zlog.Logger
}
