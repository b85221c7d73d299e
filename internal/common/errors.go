// Package common defines shared constants and sentinel errors used across
// the server, transports and client of gophauth. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")

	// Credential checks.
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUserInactiveOrMissing = errors.New("user is inactive or no longer exists")

	// Access token errors. ErrTokenExpired is a flavour of ErrInvalidToken
	// so clients can tell an expired token apart and refresh it.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrInvalidToken)

	// Refresh token lifecycle errors.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenInvalid  = errors.New("refresh token is expired or revoked")
	ErrRefreshTokenReused   = errors.New("refresh token reuse detected")

	// Authorization errors.
	ErrUnauthenticated  = errors.New("authentication required")
	ErrInsufficientRole = errors.New("insufficient role")
)
