package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/money-mirror/internal/logger"
)

type mockValidator struct {
	enabled           bool
	ValidateTokenFunc func(token string) (string, error)
}

func (m *mockValidator) Enabled() bool { return m.enabled }

func (m *mockValidator) ValidateToken(token string) (string, error) {
	return m.ValidateTokenFunc(token)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	v := &mockValidator{
		enabled: true,
		ValidateTokenFunc: func(token string) (string, error) {
			if token == "good" {
				return "caller", nil
			}
			return "", errors.New("bad token")
		},
	}

	tests := []struct {
		name       string
		validator  *mockValidator
		header     string
		wantStatus int
	}{
		{"valid bearer", v, "Bearer good", http.StatusOK},
		{"lower-case scheme", v, "bearer good", http.StatusOK},
		{"bad token", v, "Bearer nope", http.StatusUnauthorized},
		{"missing header", v, "", http.StatusUnauthorized},
		{"disabled", &mockValidator{}, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/init-categories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Auth(tt.validator)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code == http.StatusUnauthorized {
				var body ErrorResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatal(err)
				}
				if body.Status != "error" || body.Message == "" {
					t.Errorf("body = %+v", body)
				}
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	Recovery(log)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	RequestID(Logger(log)(inner)).ServeHTTP(rec, req)

	if seen != "req-1" || rec.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("request id = %q, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"status":418`) {
		t.Errorf("log output = %s", out)
	}
}

func TestCORS_Preflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/process-data", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
