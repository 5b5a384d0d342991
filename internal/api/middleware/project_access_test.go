package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/projexia/projexia/internal/core/domain"
)

type stubMembership struct {
	roles map[string]domain.MemberRole
}

type grantedKey struct{}

func (m *stubMembership) Check(_ context.Context, projectID, email string) (domain.MemberRole, error) {
	if projectID != "p1" {
		return "", domain.ErrProjectNotFound
	}
	role, ok := m.roles[email]
	if !ok {
		return "", domain.ErrNotMember
	}
	return role, nil
}

func (m *stubMembership) Authorize(ctx context.Context, caller domain.Caller, projectID string, allowed ...domain.MemberRole) error {
	role, err := m.Check(ctx, projectID, caller.Email)
	if err != nil {
		return err
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return domain.ErrForbidden
}

func (m *stubMembership) Grant(ctx context.Context, caller domain.Caller, projectID string, allowed ...domain.MemberRole) (context.Context, error) {
	if err := m.Authorize(ctx, caller, projectID, allowed...); err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, grantedKey{}, projectID), nil
}

func TestProjectAccess(t *testing.T) {
	membership := &stubMembership{roles: map[string]domain.MemberRole{
		"admin@example.com":  domain.MemberAdmin,
		"viewer@example.com": domain.MemberViewer,
	}}

	tests := []struct {
		name      string
		caller    *domain.Caller
		projectID string
		allowed   []domain.MemberRole
		wantErr   error
		wantCode  int
	}{
		{"member read", &domain.Caller{UserID: "1", Email: "viewer@example.com"}, "p1", nil, nil, 0},
		{"viewer write", &domain.Caller{UserID: "1", Email: "viewer@example.com"}, "p1", []domain.MemberRole{domain.MemberAdmin, domain.MemberMember}, domain.ErrForbidden, 0},
		{"admin write", &domain.Caller{UserID: "2", Email: "admin@example.com"}, "p1", []domain.MemberRole{domain.MemberAdmin}, nil, 0},
		{"outsider", &domain.Caller{UserID: "3", Email: "x@example.com"}, "p1", nil, domain.ErrNotMember, 0},
		{"missing project", &domain.Caller{UserID: "2", Email: "admin@example.com"}, "p9", nil, domain.ErrProjectNotFound, 0},
		{"no caller", nil, "p1", nil, nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tt.projectID)
			if tt.caller != nil {
				c.Set(CallerKey, *tt.caller)
			}

			called := false
			err := ProjectAccess(membership, "id", tt.allowed...)(func(c echo.Context) error {
				called = true
				if got := c.Request().Context().Value(grantedKey{}); got != tt.projectID {
					t.Fatalf("grant not carried to handler context, got %v", got)
				}
				return nil
			})(c)

			if tt.wantCode != 0 {
				he, ok := err.(*echo.HTTPError)
				if !ok || he.Code != tt.wantCode {
					t.Fatalf("expected HTTP %d, got %v", tt.wantCode, err)
				}
				return
			}
			if err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if called != (tt.wantErr == nil) {
				t.Fatalf("next called=%v with err=%v", called, err)
			}
		})
	}
}
