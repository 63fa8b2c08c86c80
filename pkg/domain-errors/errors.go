// Package domainerrors defines the typed error taxonomy shared by every
// service in the quota/permit engine. Services construct errors with New or
// Wrap; the HTTP layer is the only place codes are translated to status codes.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	// CodeBadRequest covers malformed input (unparseable body, bad UUID).
	CodeBadRequest Code = "bad_request"
	// CodeValidation covers well-formed input that violates field rules.
	CodeValidation Code = "validation_failed"
	// CodeNotFound indicates a referenced entity is absent.
	CodeNotFound Code = "not_found"
	// CodeConflict indicates a uniqueness or duplicate-state conflict.
	CodeConflict Code = "conflict"
	// CodeQuotaExceeded indicates recruitment-letter capacity is exhausted,
	// including gender sub-quota exhaustion. Non-retryable business outcome.
	CodeQuotaExceeded Code = "quota_exceeded"
	// CodeBusinessRule indicates a state-machine precondition was violated
	// (extending without an active permit, duplicate active deployment).
	CodeBusinessRule Code = "business_rule_violation"
	// CodePrecondition indicates caller misuse, e.g. a quota check invoked
	// outside a transaction. Programming error, not a business outcome.
	CodePrecondition Code = "precondition_failed"
	// CodeUnauthorized indicates a missing or invalid actor identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeTimeout indicates the enclosing transaction or request timed out.
	CodeTimeout Code = "timeout"
	// CodeInternal is the fallback for infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is the concrete domain error. Details carries the concrete numbers a
// quota or business-rule failure must surface to the operator.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err is already
// a domain error with the same code it is returned unchanged to avoid
// stacking identical context.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	var de *Error
	if errors.As(err, &de) && de.Code == code {
		return de
	}
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetails attaches structured detail fields, returning the same error
// for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf extracts structured details from err, nil if absent.
func DetailsOf(err error) map[string]any {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// ToHTTPStatus maps a domain error code to an HTTP status. The transport
// layer is the sole consumer; services never see status codes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeQuotaExceeded:
		return http.StatusConflict
	case CodeBusinessRule:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
