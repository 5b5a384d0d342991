package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrUserNotFound    = errors.New("user not found")

	ErrUserExists   = errors.New("user with this email already exists")
	ErrMemberExists = errors.New("member already invited to this project")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	ErrNotMember = errors.New("not a member of this project")
	ErrForbidden = errors.New("access forbidden")
	ErrLastAdmin = errors.New("project must keep at least one admin")

	ErrIdempotencyInProgress = errors.New("a request with this idempotency key is still in progress")

	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a rejected field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid returns a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
