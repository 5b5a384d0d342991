package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

func newAuthService() (*AuthService, *memStore, *stubBlacklist) {
	store := newMemStore()
	bl := &stubBlacklist{revoked: map[string]time.Duration{}}
	return NewAuthService(userRepo{store}, bl, "secret", time.Hour, zerolog.Nop()), store, bl
}

func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	return claims
}

func TestAuthService_Signup_Success(t *testing.T) {
	svc, store, _ := newAuthService()

	res, err := svc.Signup(context.Background(), ports.SignupInput{Name: "Alice", Email: " Alice@Example.com ", Password: "pass123"})
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	user := res.User
	if user.ID == "" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}
	if user.AvatarURL != domain.AvatarFor("alice@example.com") {
		t.Fatalf("unexpected avatar: %s", user.AvatarURL)
	}
	stored := store.users[user.ID]
	if stored.PasswordHash == "pass123" {
		t.Fatal("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected token")
	}
}

func TestAuthService_Signup_Validation(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	cases := []ports.SignupInput{
		{Name: "", Email: "a@example.com", Password: "pass123"},
		{Name: "A", Email: "not-an-email", Password: "pass123"},
		{Name: "A", Email: "a@example.com", Password: "12345"},
	}
	for i, in := range cases {
		if _, err := svc.Signup(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestAuthService_Signup_Duplicate(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, ports.SignupInput{Name: "Bob", Email: "bob@example.com", Password: "pass123"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, err := svc.Signup(ctx, ports.SignupInput{Name: "Bob 2", Email: "BOB@example.com", Password: "pass456"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, ports.SignupInput{Name: "Carol", Email: "carol@example.com", Password: "s3cret"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	res, err := svc.Login(ctx, "carol@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.User == nil || res.User.Name != "Carol" {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	claims := parseClaims(t, res.Token)
	if claims["sub"] != res.User.ID {
		t.Fatalf("expected sub %s, got %v", res.User.ID, claims["sub"])
	}
	if claims["email"] != "carol@example.com" || claims["role"] != domain.RoleUser {
		t.Fatalf("unexpected claims: %v", claims)
	}
	if jti, _ := claims["jti"].(string); jti == "" {
		t.Fatal("expected jti claim")
	}
}

func TestAuthService_Login_Rejects(t *testing.T) {
	svc, store, _ := newAuthService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, ports.SignupInput{Name: "Dave", Email: "dave@example.com", Password: "goodpass"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, err := (userRepo{store}).Create(ctx, &domain.User{Name: "G", Email: "g@example.com", GoogleID: "g-1"}); err != nil {
		t.Fatalf("seed google user: %v", err)
	}

	tests := []struct {
		email, password string
		want            error
	}{
		{"dave@example.com", "badpass", domain.ErrInvalidCredentials},
		{"ghost@example.com", "pass", domain.ErrInvalidCredentials},
		{"g@example.com", "anything", domain.ErrInvalidCredentials},
		{"", "", domain.ErrValidation},
	}
	for _, tt := range tests {
		if _, err := svc.Login(ctx, tt.email, tt.password); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.email, tt.want, err)
		}
	}
}

func TestAuthService_UpdateAvatar(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()
	res, err := svc.Signup(ctx, ports.SignupInput{Name: "Eve", Email: "eve@example.com", Password: "pass123"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	user, err := svc.UpdateAvatar(ctx, res.User.ID, "https://cdn.example.com/eve.png")
	if err != nil {
		t.Fatalf("UpdateAvatar returned error: %v", err)
	}
	if user.AvatarURL != "https://cdn.example.com/eve.png" {
		t.Fatalf("unexpected avatar: %s", user.AvatarURL)
	}
	if _, err := svc.UpdateAvatar(ctx, "missing", "https://cdn.example.com/x.png"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_Logout_RevokesUntilExpiry(t *testing.T) {
	svc, _, bl := newAuthService()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if err := svc.Logout(context.Background(), "jti-1", now.Add(30*time.Minute)); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if ttl := bl.revoked["jti-1"]; ttl != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", ttl)
	}

	if err := svc.Logout(context.Background(), "jti-2", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Logout of expired token returned error: %v", err)
	}
	if _, ok := bl.revoked["jti-2"]; ok {
		t.Fatal("expired token should not be stored")
	}
	if err := svc.Logout(context.Background(), "", now); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
