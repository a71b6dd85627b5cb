package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category is the stable failure class carried across tiers.
type Category string

const (
	CategoryInvalidInput         Category = "invalid_input"
	CategoryMissingParameter     Category = "missing_parameter"
	CategoryUnreachable          Category = "unreachable"
	CategoryRegistrationFailed   Category = "registration_failed"
	CategoryDeliveryFailed       Category = "delivery_failed"
	CategoryThreadCreationFailed Category = "thread_creation_failed"
	CategoryInternal             Category = "internal_error"
)

// Error is a categorized relay failure. Detail is the human-readable message
// surfaced to callers.
type Error struct {
	Category Category
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return string(e.Category)
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Message returns the caller-facing text for the failure.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return string(e.Category)
	}

	return e.Detail
}

// NewError creates a categorized relay error.
func NewError(category Category, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// Wrap categorizes cause, using it as detail when none is given.
func Wrap(category Category, cause error, detail string) error {
	if cause == nil {
		return nil
	}
	if detail == "" {
		detail = cause.Error()
	}

	return &Error{Category: category, Detail: detail, Err: cause}
}

func InvalidInput(format string, args ...any) error {
	return NewError(CategoryInvalidInput, fmt.Sprintf(format, args...))
}

func MissingParameter(name string) error {
	return NewError(CategoryMissingParameter, "Missing required parameter: "+name)
}

func Unreachable(cause error, detail string) error {
	return Wrap(CategoryUnreachable, cause, detail)
}

// CategoryFromError returns the stable category for err. Uncategorized
// timeouts count as unreachable.
func CategoryFromError(err error) Category {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryUnreachable
	}

	return CategoryInternal
}

// MessageFromError returns the caller-facing text for any error.
func MessageFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Message()
	}

	return err.Error()
}

// IsCallerError reports whether err was caused by the caller's input.
func IsCallerError(err error) bool {
	switch CategoryFromError(err) {
	case CategoryInvalidInput, CategoryMissingParameter:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a failure onto the status code both tiers answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsCallerError(err) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// CategoryFromStatus recovers a category from a downstream status code when
// the response body carried none.
func CategoryFromStatus(status int) Category {
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return CategoryInvalidInput
	}

	return CategoryInternal
}
