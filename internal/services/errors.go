package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrUsernameExists is returned when the chosen username is already taken.
var ErrUsernameExists = errors.New("username already in use by another account")

// ErrInvalidCredentials is returned for any failed authentication attempt.
// The same error covers unknown email, wrong password and inactive account
// so callers cannot tell which it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrForbidden is returned when the acting user is not allowed to perform the operation.
var ErrForbidden = errors.New("forbidden")

// ErrSuperuserExists is returned by the one-shot setup endpoint once a superuser is present.
var ErrSuperuserExists = errors.New("a superuser account already exists")

// ValidationError carries per-field rejection reasons for bad input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
