package workflow

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a workflow failure so the transport layer can map it
// to a status code without inspecting message text.
type Kind int

const (
	// KindValidation marks malformed or out-of-range input.
	KindValidation Kind = iota
	// KindSlotConflict marks a lost race for a provider timestamp.
	KindSlotConflict
	// KindInvalidTransition marks an illegal status change.
	KindInvalidTransition
	// KindAlreadyExists marks a tripped idempotency guard.
	KindAlreadyExists
	// KindConflict marks a structural dependency blocking the operation.
	KindConflict
	// KindNotFound marks a missing referenced entity.
	KindNotFound
	// KindTransient marks a retryable storage failure.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSlotConflict:
		return "slot_conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindAlreadyExists:
		return "already_exists"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is the workflow error type. Match with errors.As and switch on
// Kind; Err carries the underlying cause when there is one.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is comparisons against another *Error by Kind.
func (e *Error) Is(target error) bool {
	var we *Error
	if errors.As(target, &we) {
		return we.Kind == e.Kind
	}
	return false
}

func ErrValidation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ErrSlotConflict(providerID string) error {
	return &Error{Kind: KindSlotConflict, Message: fmt.Sprintf("provider %s already has an appointment at this time", providerID)}
}

func ErrInvalidTransition(from, to string) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot change status from %s to %s", from, to)}
}

func ErrAlreadyExists(format string, args ...interface{}) error {
	return &Error{Kind: KindAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

func ErrConflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func ErrNotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// KindOf extracts the workflow kind of err, or ok=false when err is not
// a workflow error.
func KindOf(err error) (Kind, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return 0, false
}

// storageErr wraps an unexpected storage failure. Context expiry is
// surfaced as transient so callers know a retry may succeed; everything
// else passes through wrapped.
func storageErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTransient, Message: op + " interrupted", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFoundOr maps gorm's record-not-found onto the taxonomy, leaving
// other errors to storageErr.
func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound(entity, id)
	}
	return storageErr("load "+entity, err)
}
