package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindIntegrity     ErrorKind = "INTEGRITY"
	KindNotFound      ErrorKind = "NOT_FOUND"
)

// Error is the structured failure every operation in the core returns:
// a kind for programmatic handling, a human-readable reason, and an
// optional remediation hint. Nothing here is retried automatically.
type Error struct {
	Kind        ErrorKind `json:"kind"`
	Reason      string    `json:"reason"`
	Remediation string    `json:"remediation,omitempty"`
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Reason, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func NewValidationError(reason, remediation string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Remediation: remediation}
}

func NewAuthorizationError(reason, remediation string) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason, Remediation: remediation}
}

func NewIntegrityError(reason string) *Error {
	return &Error{Kind: KindIntegrity, Reason: reason}
}

func NewNotFoundError(reason string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

// IsKind reports whether err (or anything it wraps) is a *Error of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
