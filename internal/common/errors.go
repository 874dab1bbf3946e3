package common

import (
	"errors"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrStateClosed    = errors.New("server state closed")
	ErrRateLimited    = errors.New("too many requests")

	// Account errors.
	ErrInvalidCredentials  = errors.New("email or password is invalid")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("already taken")
	ErrHashing             = errors.New("password hashing failed")
	ErrVerification        = errors.New("stored password hash is corrupt")
	ErrRegistrationFailed  = errors.New("registration failed")
	ErrUpdateFailed        = errors.New("account update failed")
	ErrStore               = errors.New("account store failure")
	ErrTokenIssuanceFailed = errors.New("token issuance failed")

	// Token errors.
	ErrSigning      = errors.New("token signing failed")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrEmailTaken    = &ConflictError{Field: "email"}
	ErrUsernameTaken = &ConflictError{Field: "username"}
)

// ConflictError reports a uniqueness violation on an account field.
// It matches ErrConflict as well as the per-field sentinels.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " has already been taken"
}

func (e *ConflictError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	t, ok := target.(*ConflictError)
	return ok && t.Field == e.Field
}

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError builds a ValidationError with a single message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {msg}}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
