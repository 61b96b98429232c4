package shared

import (
	"errors"
	"fmt"
)

// Error classes. Domain packages wrap one of these so the HTTP layer can map
// failures without knowing every package.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing, expired or revoked token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate indicates a unique key already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
)

var defaultMessages = []struct {
	kind error
	msg  string
}{
	{ErrValidation, "The request is invalid."},
	{ErrInvalidCredentials, "Invalid email or password."},
	{ErrUnauthorized, "Authentication required."},
	{ErrForbidden, "You are not allowed to perform this action."},
	{ErrNotFound, "The requested resource was not found."},
	{ErrDuplicate, "The resource already exists."},
	{ErrConflict, "The request conflicts with the current state."},
}

// Error carries a message that is safe to show to API callers together with
// its class.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the error class.
func (e *Error) Unwrap() error { return e.Kind }

// UserMessage implements UserMessager.
func (e *Error) UserMessage() string { return e.Message }

// Errorf builds an Error of the given class.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// UserMessager is implemented by errors whose text can be shown to callers.
type UserMessager interface {
	UserMessage() string
}

// UserSafeMessage returns a message describing err that never leaks storage
// internals.
func UserSafeMessage(err error) string {
	var um UserMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	for _, d := range defaultMessages {
		if errors.Is(err, d.kind) {
			return d.msg
		}
	}
	return "Internal server error. Please try again later."
}
