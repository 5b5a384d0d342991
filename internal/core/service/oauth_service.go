package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

const oauthStateTTL = 10 * time.Minute

// OAuthService signs users in through an external identity provider and
// issues the same tokens as local login.
type OAuthService struct {
	provider ports.OAuthProvider
	states   ports.StateStore
	users    ports.UserRepository
	auth     *AuthService
}

func NewOAuthService(provider ports.OAuthProvider, states ports.StateStore, users ports.UserRepository, auth *AuthService) *OAuthService {
	return &OAuthService{provider: provider, states: states, users: users, auth: auth}
}

func (s *OAuthService) Begin(ctx context.Context) (string, string, error) {
	state := uuid.NewString()
	if err := s.states.Save(ctx, state, oauthStateTTL); err != nil {
		return "", "", fmt.Errorf("oauth begin: %w", err)
	}
	return s.provider.AuthCodeURL(state), state, nil
}

func (s *OAuthService) Complete(ctx context.Context, state, code string) (*ports.AuthResult, error) {
	if state == "" || code == "" {
		return nil, domain.ErrInvalidCredentials
	}
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("oauth state: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	ident, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}

	user, err := s.resolveUser(ctx, ident)
	if err != nil {
		return nil, err
	}
	return s.auth.issue(user)
}

// resolveUser finds the account by Google ID, then links by email, then
// creates a new account on first login.
func (s *OAuthService) resolveUser(ctx context.Context, ident *ports.ExternalIdentity) (*domain.User, error) {
	user, err := s.users.FindByGoogleID(ctx, ident.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("oauth lookup: %w", err)
	}

	email := normalizeEmail(ident.Email)
	now := s.auth.now()

	user, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkGoogle(ctx, user.ID, ident.ProviderID, now); err != nil {
			return nil, fmt.Errorf("oauth link: %w", err)
		}
		user.GoogleID = ident.ProviderID
		return user, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("oauth lookup: %w", err)
	}

	avatar := ident.Picture
	if avatar == "" {
		avatar = domain.AvatarFor(email)
	}
	name := ident.Name
	if name == "" {
		name = email
	}
	return s.users.Create(ctx, &domain.User{
		Name:      name,
		Email:     email,
		GoogleID:  ident.ProviderID,
		AvatarURL: avatar,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	})
}
