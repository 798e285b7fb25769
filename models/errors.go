package models

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Callers wrap these with fmt.Errorf("...: %w", ErrX)
// and the HTTP layer maps them to status codes with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrOutOfStock       = errors.New("out of stock")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrAuth             = errors.New("invalid credentials")
	ErrForbidden        = errors.New("forbidden")
	ErrMonthClosed      = errors.New("month is closed")
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be a positive whole number", ErrValidation)
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
