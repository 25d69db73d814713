package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func TestHandlerLoggerTagsTheRoute(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := chi.NewRouter()
	router.Use(middleware.RequestID, RequestLogger(base))
	router.Get("/rendez-vous/{id}", func(w http.ResponseWriter, r *http.Request) {
		handlerLogger(r, nil, "RendezVousHandler", "Get", "rendez_vous_id", chi.URLParam(r, "id")).
			InfoContext(r.Context(), "loaded")
		w.WriteHeader(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rendez-vous/rdv-9", nil))

	var entry map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode log line %q: %v", scanner.Text(), err)
		}
		if line["msg"] == "loaded" {
			entry = line
		}
	}
	if entry == nil {
		t.Fatalf("expected the handler line in:\n%s", buf.String())
	}

	want := map[string]string{
		"handler":        "RendezVousHandler",
		"operation":      "Get",
		"route":          "/rendez-vous/{id}",
		"rendez_vous_id": "rdv-9",
		"method":         http.MethodGet,
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("%s = %v, want %q", key, entry[key], value)
		}
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Errorf("expected the request id on handler lines, got %v", entry["request_id"])
	}
}

func TestHandlerLoggerFallsBackOutsideRequests(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&buf, nil))

	handlerLogger(httptest.NewRequest(http.MethodGet, "/", nil), fallback, "AuthHandler", "").Info("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["handler"] != "AuthHandler" {
		t.Fatalf("expected the fallback logger to be used, got %v", entry)
	}
	if _, ok := entry["operation"]; ok {
		t.Fatalf("expected no operation for an empty name, got %v", entry)
	}
	if _, ok := entry["route"]; ok {
		t.Fatalf("expected no route outside the router, got %v", entry)
	}
}
