// Package apperror defines the application error taxonomy shared by every
// layer. Services return these; the HTTP layer maps them to status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: entry/tag/user id absent where the caller asked for a lookup.
	ErrNotFound = errors.New("not found")
	// ErrValidation: malformed input (empty name, bad color, unknown cadence).
	ErrValidation = errors.New("validation error")
	// ErrConflict: uniqueness violation, e.g. a duplicate tag name.
	ErrConflict = errors.New("conflict")
	// ErrNotLoggedIn: no authenticated session; the UI redirects to login.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrLimitReached: a plan-gated operation was denied (Free pin cap).
	ErrLimitReached = errors.New("plan limit reached")
	// ErrUnavailable: storage not yet initialized; callers retry with backoff.
	ErrUnavailable = errors.New("temporarily unavailable")
	// ErrOffline: the network is unreachable and the operation requires it.
	ErrOffline = errors.New("network unavailable")
)

// AppError carries a sentinel plus a human-readable message.
type AppError struct {
	Err     error  // sentinel cause, for errors.Is
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateName reports a tag-name collision within an organization.
func DuplicateName(resource, name string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q already exists in this organization", resource, name),
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

func NotLoggedIn() *AppError {
	return &AppError{
		Err:     ErrNotLoggedIn,
		Message: "user not logged in",
	}
}

func LimitReached(message string) *AppError {
	return &AppError{
		Err:     ErrLimitReached,
		Message: message,
	}
}

func Unavailable(subsystem string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s is not ready yet", subsystem),
	}
}

func Offline(operation string) *AppError {
	return &AppError{
		Err:     ErrOffline,
		Message: fmt.Sprintf("%s requires a network connection", operation),
	}
}
