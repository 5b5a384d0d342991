package domain

import (
	"net/url"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Caller is the identity extracted from a verified token.
type Caller struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// IsAdmin reports whether the caller holds the global admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// AvatarFor returns the deterministic placeholder avatar seeded by email.
func AvatarFor(email string) string {
	return avatarBaseURL + url.QueryEscape(email)
}
