package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies request/field validation failures.
	ErrValidation = errors.New("jobs validation error")
	// ErrNotFound classifies lookups for job ids with no matching row.
	ErrNotFound = errors.New("jobs not found")
	// ErrStorage classifies persistence failures surfaced to callers as a
	// generic internal error, never with raw driver detail.
	ErrStorage = errors.New("jobs storage error")
	// ErrInvalidArgument classifies invalid caller arguments.
	ErrInvalidArgument = errors.New("jobs invalid argument")
)

func jobsError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
