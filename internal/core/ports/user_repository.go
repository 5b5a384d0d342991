package ports

import (
	"context"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
)

// UserRepository defines persistence for user accounts.
type UserRepository interface {
	// Create inserts user and returns it with its generated ID.
	// A duplicate email yields domain.ErrUserExists.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	// LinkGoogle attaches an external Google identity to an existing account.
	LinkGoogle(ctx context.Context, id, googleID string, at time.Time) error
	UpdateAvatar(ctx context.Context, id, avatarURL string, at time.Time) error
}
