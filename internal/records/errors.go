package records

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so the transport layer can pick a status
// code without inspecting error strings.
type Kind string

const (
	// KindValidation marks malformed input rejected before any store access.
	KindValidation Kind = "validation"
	// KindAuth marks an admin secret mismatch on a destructive operation.
	KindAuth Kind = "auth"
	// KindConflict marks a localId uniqueness violation on ingestion.
	KindConflict Kind = "conflict"
	// KindStore marks a store connectivity or query failure.
	KindStore Kind = "store"
)

// Error is a coded service error carrying its classification and cause.
type Error struct {
	kind Kind
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the failure classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code returns the operation.reason code, e.g. "records.ingest.insert_failed".
func (e *Error) Code() string {
	return e.code
}

func newError(kind Kind, operation, reason string, cause error) error {
	return &Error{kind: kind, code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// KindOf extracts the classification from err, defaulting to KindStore for
// anything that is not a service error.
func KindOf(err error) Kind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind()
	}
	return KindStore
}
