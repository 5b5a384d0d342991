package ports

import (
	"context"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
)

// SignupInput carries the fields of a local-credentials signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by every operation that issues a token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// ExternalIdentity is the profile returned by an OAuth provider.
type ExternalIdentity struct {
	ProviderID string
	Email      string
	Name       string
	Picture    string
}

type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (*domain.User, error)
	// Logout revokes the token identified by jti until it would have expired.
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
}

// OAuthService drives the Google sign-in redirect flow.
type OAuthService interface {
	// Begin returns the provider consent URL and the fresh state value it is
	// bound to. The caller must tie state to the browser that started the flow.
	Begin(ctx context.Context) (authURL, state string, err error)
	// Complete validates state, exchanges code and signs the user in.
	Complete(ctx context.Context, state, code string) (*AuthResult, error)
}

// OAuthProvider abstracts the external identity provider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

// StateStore keeps one-shot OAuth state values.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume deletes state and reports whether it existed.
	Consume(ctx context.Context, state string) (bool, error)
}

// TokenBlacklist invalidates tokens before they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
