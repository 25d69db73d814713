package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/logging"
)

// TokenValidator resolves the principal behind a session token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession rejects requests without a valid bearer token or session
// cookie and stores the principal in the request context.
func RequireSession(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "SESSION_MISSING",
					Message:   errMissingSessionToken.Error(),
				})
				return
			}

			principal, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrInvalidCredentials), errors.Is(err, application.ErrUnauthorized):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: "SESSION_INVALID",
						Message:   "the session is invalid or expired, sign in again",
					})
				default:
					responder.writeError(r.Context(), w, http.StatusInternalServerError, errors.New("session validation failed"))
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = logging.ContextWithLogger(ctx, logger.With("principal_id", principal.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request-scoped logger carrying the chi request
// id, method and path, and logs the outcome of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// CORS allows the browser editor to call the API from the given origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Session-Token", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		options.AllowedOrigins = []string{"*"}
		options.AllowCredentials = false
	}
	return cors.Handler(options)
}
