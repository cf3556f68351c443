// Package common defines shared constants and sentinel errors used across
// the vidkeeper server layers. Callers should use errors.Is to match these
// values; services wrap them with a human-readable message.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level error kinds. Each maps to one HTTP status at the
	// transport boundary.
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrUpload         = errors.New("upload error")
	ErrIntegrity      = errors.New("integrity error")
	ErrStore          = errors.New("store error")
	ErrorInternal     = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)

// Error pairs an error kind (one of the sentinels above) with a message
// that is safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

// NewError returns an *Error of the given kind.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }
