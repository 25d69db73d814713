package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/logging"
)

type tokenValidatorStub struct {
	principals map[string]application.Principal
	err        error
	calls      []string
}

func (s *tokenValidatorStub) ValidateToken(ctx context.Context, token string) (application.Principal, error) {
	s.calls = append(s.calls, token)
	if s.err != nil {
		return application.Principal{}, s.err
	}
	principal, ok := s.principals[token]
	if !ok {
		return application.Principal{}, application.ErrInvalidCredentials
	}
	return principal, nil
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	alice := application.Principal{UserID: "alice"}

	tests := []struct {
		name           string
		header         string
		cookie         *http.Cookie
		validatorErr   error
		expectedStatus int
		expectedCode   string
		wantPrincipal  bool
	}{
		{
			name:           "missing credentials",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "SESSION_MISSING",
		},
		{
			name:           "non bearer header",
			header:         "Basic abc",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "SESSION_MISSING",
		},
		{
			name:           "unknown token",
			header:         "Bearer forged",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "SESSION_INVALID",
		},
		{
			name:           "bearer token",
			header:         "Bearer alice-token",
			expectedStatus: http.StatusOK,
			wantPrincipal:  true,
		},
		{
			name:           "session cookie",
			cookie:         &http.Cookie{Name: sessionCookieName, Value: "alice-token"},
			expectedStatus: http.StatusOK,
			wantPrincipal:  true,
		},
		{
			name:           "validator failure",
			header:         "Bearer alice-token",
			validatorErr:   errors.New("database is locked"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			validator := &tokenValidatorStub{
				principals: map[string]application.Principal{"alice-token": alice},
				err:        tc.validatorErr,
			}
			var got application.Principal
			var seen bool
			handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, seen = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d", tc.expectedStatus, rec.Code)
			}
			if tc.expectedCode != "" {
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if resp.ErrorCode != tc.expectedCode {
					t.Fatalf("expected error code %s, got %s", tc.expectedCode, resp.ErrorCode)
				}
			}
			if seen != tc.wantPrincipal {
				t.Fatalf("expected principal presence %v, got %v", tc.wantPrincipal, seen)
			}
			if tc.wantPrincipal && got != alice {
				t.Fatalf("unexpected principal: %#v", got)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var sawLogger, sawRequestID bool
	handler := middleware.RequestID(RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logging.FromContext(r.Context()) != nil
		sawRequestID = middleware.GetReqID(r.Context()) != ""
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected the wrapped status to pass through, got %d", rec.Code)
	}
	if !sawLogger || !sawRequestID {
		t.Fatalf("expected a request scoped logger and request id, logger=%v id=%v", sawLogger, sawRequestID)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	handler := CORS([]string{"https://editor.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/rendez-vous", nil)
	req.Header.Set("Origin", "https://editor.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://editor.example" {
		t.Fatalf("expected allowed origin to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/rendez-vous", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected foreign origin to be refused, got %q", got)
	}
}
