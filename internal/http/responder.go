package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/scheduling"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errMissingID           = errors.New("resource id is required")
	errMissingSessionToken = errors.New("a session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps service and engine errors to status codes and
// stable error codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	resp := errorResponse{ErrorCode: strings.ToUpper(kind), Message: err.Error()}

	var vErr *scheduling.ValidationError
	if errors.As(err, &vErr) {
		resp.Message = "the request contains invalid fields"
		resp.Errors = vErr.Fields()
	}
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		resp = errorResponse{ErrorCode: "INTERNAL", Message: http.StatusText(status)}
	}
	r.writeJSON(ctx, w, status, resp)
}

func statusForKind(kind string) int {
	switch kind {
	case "validation", "immutable_field", "invalid_date":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "unauthorized", "not_eligible":
		return http.StatusForbidden
	case "already_scheduled", "not_editable", "conflict", "already_exists":
		return http.StatusConflict
	case "invalid_credentials":
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string              `json:"error_code,omitempty"`
	Message   string              `json:"message"`
	Errors    map[string][]string `json:"errors,omitempty"`
}
