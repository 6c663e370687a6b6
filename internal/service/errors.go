package service

import (
	"errors"
	"fmt"
)

var (
	// Validation errors: rejected before any store access.
	ErrMissingRequiredFields     = errors.New("missing required fields")
	ErrMissingParentInfo         = errors.New("parent id, name and email are required")
	ErrInvalidActorSpecification = errors.New("exactly one of parentId or driverId must be provided")
	ErrInvalidInput              = errors.New("invalid input")

	// Not-found errors: the reference is stale or unknown.
	ErrNotFound                = errors.New("not found")
	ErrInvalidOrExpired        = errors.New("invalid or expired code")
	ErrUnknownOrInactiveDriver = errors.New("unknown or inactive driver")
	ErrDriverNotFound          = errors.New("driver not found")
	ErrParentNotFound          = errors.New("parent not found")

	// ErrInvalidTransition is returned for a target status the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyTerminal: pickup đã completed hoặc cancelled, người khác đã xử lý trước.
	ErrAlreadyTerminal = fmt.Errorf("%w: pickup already completed or cancelled", ErrInvalidTransition)
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindUnexpected Kind = "unexpected"
)

// ErrorKind maps sentinel errors to a stable label used in logs and HTTP responses.
func ErrorKind(err error) Kind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAlreadyTerminal):
		return KindConflict
	case errors.Is(err, ErrMissingRequiredFields),
		errors.Is(err, ErrMissingParentInfo),
		errors.Is(err, ErrInvalidActorSpecification),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidTransition):
		return KindValidation
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidOrExpired),
		errors.Is(err, ErrUnknownOrInactiveDriver),
		errors.Is(err, ErrDriverNotFound),
		errors.Is(err, ErrParentNotFound):
		return KindNotFound
	}
	return KindUnexpected
}
