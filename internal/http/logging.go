package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger extends the request logger, which already carries the
// request id and principal, with the handler, operation and matched route.
func handlerLogger(r *http.Request, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(r.Context())
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 6+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			pairs = append(pairs, "route", pattern)
		}
	}
	return logger.With(append(pairs, attrs...)...)
}
