package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/api/middleware"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

type stubOAuthService struct {
	completeFn func(ctx context.Context, state, code string) (*ports.AuthResult, error)
}

func (s *stubOAuthService) Begin(ctx context.Context) (string, string, error) {
	return "https://accounts.example.com/auth?state=s1", "s1", nil
}

func (s *stubOAuthService) Complete(ctx context.Context, state, code string) (*ports.AuthResult, error) {
	return s.completeFn(ctx, state, code)
}

func TestOAuthHandler_Begin_Redirects(t *testing.T) {
	h := NewOAuthHandler(&stubOAuthService{}, &stubAuthService{}, "http://app.local/", zerolog.Nop())

	c, rec := newContext(http.MethodGet, "/auth/google", "", nil)
	if err := h.Begin(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.example.com/") {
		t.Fatalf("unexpected location %q", loc)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one state cookie, got %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != oauthStateCookie || ck.Value != "s1" {
		t.Fatalf("unexpected cookie %s=%s", ck.Name, ck.Value)
	}
	if !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode || ck.Path != "/auth/google" {
		t.Fatalf("state cookie not locked down: %+v", ck)
	}
}

func TestOAuthHandler_Begin_NotConfigured(t *testing.T) {
	h := NewOAuthHandler(nil, &stubAuthService{}, "http://app.local", zerolog.Nop())

	c, _ := newContext(http.MethodGet, "/auth/google", "", nil)
	if code := httpStatus(h.Begin(c)); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestOAuthHandler_Callback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLoc string
	}{
		{name: "success", wantLoc: "http://app.local/dashboard#token=tok"},
		{name: "bad state", err: domain.ErrInvalidCredentials, wantLoc: "http://app.local/login?error=invalid_state"},
		{name: "exchange failure", err: errors.New("boom"), wantLoc: "http://app.local/login?error=oauth_failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubOAuthService{
				completeFn: func(ctx context.Context, state, code string) (*ports.AuthResult, error) {
					if state != "s1" || code != "c1" {
						t.Fatalf("unexpected state/code: %s %s", state, code)
					}
					if tc.err != nil {
						return nil, tc.err
					}
					return &ports.AuthResult{Token: "tok", User: sampleUser()}, nil
				},
			}
			h := NewOAuthHandler(stub, &stubAuthService{}, "http://app.local", zerolog.Nop())

			c, rec := newContext(http.MethodGet, "/auth/google/callback?state=s1&code=c1", "", nil)
			c.Request().AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
			if err := h.Callback(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if loc := rec.Header().Get("Location"); loc != tc.wantLoc {
				t.Fatalf("expected %q, got %q", tc.wantLoc, loc)
			}
		})
	}
}

func TestOAuthHandler_Callback_StateMustMatchCookie(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie"},
		{name: "other browser", cookie: &http.Cookie{Name: oauthStateCookie, Value: "attacker-state"}},
		{name: "empty cookie", cookie: &http.Cookie{Name: oauthStateCookie, Value: ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			stub := &stubOAuthService{
				completeFn: func(ctx context.Context, state, code string) (*ports.AuthResult, error) {
					called = true
					return &ports.AuthResult{Token: "tok", User: sampleUser()}, nil
				},
			}
			h := NewOAuthHandler(stub, &stubAuthService{}, "http://app.local", zerolog.Nop())

			c, rec := newContext(http.MethodGet, "/auth/google/callback?state=s1&code=c1", "", nil)
			if tc.cookie != nil {
				c.Request().AddCookie(tc.cookie)
			}
			if err := h.Callback(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if called {
				t.Fatal("state was consumed without a matching cookie")
			}
			if loc := rec.Header().Get("Location"); loc != "http://app.local/login?error=invalid_state" {
				t.Fatalf("unexpected location %q", loc)
			}
			for _, ck := range rec.Result().Cookies() {
				if ck.Name == oauthStateCookie && ck.MaxAge >= 0 {
					t.Fatalf("state cookie not cleared: %+v", ck)
				}
			}
		})
	}
}

func TestOAuthHandler_Logout(t *testing.T) {
	auth := &stubAuthService{}
	h := NewOAuthHandler(nil, auth, "http://app.local", zerolog.Nop())

	c, rec := newContext(http.MethodGet, "/auth/logout", "", nil)
	c.Set(middleware.TokenIDKey, "jti-9")
	c.Set(middleware.ExpiresAtKey, time.Now().Add(time.Hour))

	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if loc := rec.Header().Get("Location"); loc != "http://app.local/login" {
		t.Fatalf("unexpected location %q", loc)
	}
	if len(auth.revoked) != 1 {
		t.Fatalf("expected token revoked")
	}
}
