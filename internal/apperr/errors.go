// Package apperr defines the error kinds returned by the service layer.
// Every operation fails with an *Error carrying one of the kinds below so
// the HTTP boundary can pick a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	InvalidCredential  Kind = "invalid_credential"
	CredentialExpired  Kind = "credential_expired"
	AccountNotFound    Kind = "account_not_found"
	AccountDisabled    Kind = "account_disabled"
	InsufficientRole   Kind = "insufficient_role"
	Forbidden          Kind = "forbidden"
	NotFound           Kind = "not_found"
	Validation         Kind = "validation_error"
	DuplicateReference Kind = "duplicate_reference"
	IncompleteProfile  Kind = "incomplete_profile"
	ItemNotFound       Kind = "item_not_found"
	ItemUnavailable    Kind = "item_unavailable"
	InvalidStatus      Kind = "invalid_status"
	InvalidTransition  Kind = "invalid_transition"
	AlreadyCancelled   Kind = "already_cancelled"
	RateLimited        Kind = "too_many_requests"
	Internal           Kind = "internal_error"
)

// FieldError describes one violated input constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Error is the concrete error type. Err holds the underlying cause for
// Internal failures and is never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+" "+f.Message)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated    = &Error{Kind: Unauthenticated}
	ErrInvalidCredential  = &Error{Kind: InvalidCredential}
	ErrCredentialExpired  = &Error{Kind: CredentialExpired}
	ErrAccountNotFound    = &Error{Kind: AccountNotFound}
	ErrAccountDisabled    = &Error{Kind: AccountDisabled}
	ErrInsufficientRole   = &Error{Kind: InsufficientRole}
	ErrForbidden          = &Error{Kind: Forbidden}
	ErrNotFound           = &Error{Kind: NotFound}
	ErrValidation         = &Error{Kind: Validation}
	ErrDuplicateReference = &Error{Kind: DuplicateReference}
	ErrIncompleteProfile  = &Error{Kind: IncompleteProfile}
	ErrItemNotFound       = &Error{Kind: ItemNotFound}
	ErrItemUnavailable    = &Error{Kind: ItemUnavailable}
	ErrInvalidStatus      = &Error{Kind: InvalidStatus}
	ErrInvalidTransition  = &Error{Kind: InvalidTransition}
	ErrAlreadyCancelled   = &Error{Kind: AlreadyCancelled}
	ErrRateLimited        = &Error{Kind: RateLimited}
	ErrInternal           = &Error{Kind: Internal}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap records cause as an Internal failure.
func Wrap(cause error, format string, args ...any) *Error {
	return &Error{Kind: Internal, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Invalid returns a Validation error carrying every violated field.
func Invalid(fields []FieldError) *Error {
	return &Error{Kind: Validation, Message: "request validation failed", Fields: fields}
}

// KindOf reports the kind of err. Errors that are not *Error count as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
