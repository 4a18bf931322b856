package provider

import (
	"errors"
	"fmt"
)

// ErrKind classifies provider failures so callers can branch on the class
// instead of sniffing error strings.
type ErrKind string

const (
	// ErrKindConfiguration means credentials are missing or invalid. Fatal, no retry.
	ErrKindConfiguration ErrKind = "CONFIGURATION"
	// ErrKindTimeout means a report never reached DONE inside the poll ceiling.
	ErrKindTimeout ErrKind = "UPSTREAM_TIMEOUT"
	// ErrKindProcessing means the provider marked the report FATAL or CANCELLED.
	ErrKindProcessing ErrKind = "UPSTREAM_PROCESSING"
	// ErrKindTransient covers network and 5xx failures worth a later retry.
	ErrKindTransient ErrKind = "TRANSIENT"
	// ErrKindResponse means the provider answered with an unusable payload.
	ErrKindResponse ErrKind = "BAD_RESPONSE"
)

// Error is a classified provider failure.
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or empty if err is not a
// provider error.
func KindOf(err error) ErrKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func newError(kind ErrKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
