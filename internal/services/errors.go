package services

import (
	"errors"
	"fmt"

	"erp/internal/repositories"
)

var (
	// ErrValidation marks input that violates a field constraint.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = repositories.ErrNotFound
	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrDuplicateEmail is returned when registering a taken email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown user or a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, forged and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is an ErrInvalidToken whose signature checked out but
	// whose lifetime has elapsed.
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrInvalidToken)
	// ErrUnauthorized is the single outcome the auth guard reports.
	ErrUnauthorized = errors.New("unauthorized")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
