// Package apperr defines the error taxonomy shared by middleware, services
// and handlers.  Every failure a client can see is an *Error carrying a
// Kind (which selects the HTTP status), a machine-readable Code and a
// message.  The central HTTP error handler renders these; anything else
// becomes a 500.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for status code selection.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindBusinessRule
	KindConflict
)

// Status maps a Kind onto its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBusinessRule:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Machine-readable codes returned alongside the message.
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeStaleCredential    = "STALE_CREDENTIAL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeWrongRole          = "WRONG_ROLE"
	CodeNotOwner           = "NOT_OWNER"
	CodePendingApproval    = "PENDING_APPROVAL"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_FAILED"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeInvalidState       = "INVALID_STATE"
	CodeAlreadyConfirmed   = "ALREADY_CONFIRMED"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodeConflict           = "CONFLICT"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the client-visible error value.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []FieldError
	Meta    map[string]any
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status for the error.
func (e *Error) Status() int { return e.Kind.Status() }

// With attaches an extra key to the response body.
func (e *Error) With(key string, v any) *Error {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = v
	return e
}

// New builds an *Error.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

func Unauthenticated(msg string) *Error {
	return New(KindUnauthenticated, CodeUnauthenticated, msg)
}

func InvalidToken() *Error {
	return New(KindUnauthenticated, CodeInvalidToken, "invalid or expired token")
}

func StaleCredential() *Error {
	return New(KindUnauthenticated, CodeStaleCredential, "account no longer exists")
}

func InvalidCredentials() *Error {
	return New(KindUnauthenticated, CodeInvalidCredentials, "invalid credentials")
}

func Forbidden(msg string) *Error {
	return New(KindForbidden, CodeForbidden, msg)
}

func WrongRole() *Error {
	return New(KindForbidden, CodeWrongRole, "access denied for this role")
}

func NotOwner() *Error {
	return New(KindForbidden, CodeNotOwner, "you do not own this resource")
}

func PendingApproval() *Error {
	return New(KindForbidden, CodePendingApproval, "your account is pending admin approval")
}

func NotFound(msg string) *Error {
	return New(KindNotFound, CodeNotFound, msg)
}

func Validation(msg string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg, Details: details}
}

func InsufficientStock(msg string) *Error {
	return New(KindBusinessRule, CodeInsufficientStock, msg)
}

func InvalidState(msg string) *Error {
	return New(KindBusinessRule, CodeInvalidState, msg)
}

func AlreadyConfirmed() *Error {
	return New(KindBusinessRule, CodeAlreadyConfirmed, "order already confirmed")
}

func EmailExists() *Error {
	return New(KindBusinessRule, CodeEmailExists, "email already registered")
}

func InvalidResetToken() *Error {
	return New(KindBusinessRule, CodeInvalidResetToken, "invalid or expired reset token")
}

func BusinessRule(code, msg string) *Error {
	return New(KindBusinessRule, code, msg)
}

func Conflict(msg string) *Error {
	return New(KindConflict, CodeConflict, msg)
}

func Internal(msg string) *Error {
	return New(KindInternal, CodeInternal, msg)
}
