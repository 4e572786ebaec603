// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Key resolution errors. These describe a caller configuration problem,
	// not a server fault: the request reached the resolver but no usable
	// provider credential could be selected for it.
	ErrDemoUnavailable       = errors.New("demo mode not available")
	ErrCredentialNotFound    = errors.New("credential not found")
	ErrNoCredentialAvailable = errors.New("no credential available")
)
