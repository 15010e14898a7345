package interview

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries a user-facing message for one of the sentinel kinds above.
// errors.Is matches the kind; Error returns only the message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...any) error {
	return &Error{Kind: ErrInvalidState, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}
