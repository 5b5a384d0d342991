package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/pkg/config"
)

func newTestRouter() http.Handler {
	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "secret",
		FrontendURL:        "http://app.local",
		CORSOrigins:        []string{"http://app.local"},
		RateLimitPerMinute: 60,
	}
	return NewRouter(Deps{Config: cfg, Log: zerolog.Nop(), Registerer: prometheus.NewRegistry()})
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"liveness", http.MethodGet, "/health", http.StatusOK},
		{"readiness without checks", http.MethodGet, "/health/ready", http.StatusOK},
		{"projects need a token", http.MethodGet, "/api/projects", http.StatusUnauthorized},
		{"tasks need a token", http.MethodPost, "/api/tasks", http.StatusUnauthorized},
		{"me needs a token", http.MethodGet, "/api/auth/current_user", http.StatusUnauthorized},
		{"google disabled", http.MethodGet, "/auth/google", http.StatusServiceUnavailable},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
	}

	router := newTestRouter()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.want {
				t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rec.Code)
			}
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := &config.Config{Env: "test", JWTSecret: "secret", RateLimitPerMinute: 1}
	router := NewRouter(Deps{Config: cfg, Log: zerolog.Nop(), Registerer: prometheus.NewRegistry()})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [401 429], got %v", codes)
	}
}
