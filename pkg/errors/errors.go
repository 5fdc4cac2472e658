// Package errors carries the API error taxonomy. Every Code maps to an HTTP
// status and a public message; the wrapped cause stays server side.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Checkout rejections.
	CodeProfileIncomplete Code = "PROFILE_INCOMPLETE"
	CodeCartEmpty         Code = "CART_EMPTY"
	CodeCartInvalid       Code = "CART_INVALID"
	CodeCouponRejected    Code = "COUPON_REJECTED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// ExposesMessage reports whether the error's own message may replace the
// generic public one. Server faults never leak their message.
func (m Metadata) ExposesMessage() bool {
	return m.HTTPStatus < http.StatusInternalServerError
}

const (
	withDetails = 1 << iota
	retryable
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		DetailsAllowed: flags&withDetails != 0,
		Retryable:      flags&retryable != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", withDetails),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", 0),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", 0),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", 0),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "rate limit exceeded", 0),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", withDetails|retryable),
	CodeProfileIncomplete: meta(http.StatusUnprocessableEntity, "delivery profile incomplete", withDetails),
	CodeCartEmpty:         meta(http.StatusUnprocessableEntity, "cart is empty", 0),
	CodeCartInvalid:       meta(http.StatusConflict, "cart contains invalid items and was cleared", withDetails),
	CodeCouponRejected:    meta(http.StatusUnprocessableEntity, "coupon not applicable", withDetails),
}

// MetadataFor treats unknown codes as internal errors.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded API error. The nil *Error is usable and reads as internal.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// WithRedirect adds a "redirect" client route hint, merging into map details.
func (e *Error) WithRedirect(path string) *Error {
	if e == nil {
		return nil
	}
	details, _ := e.details.(map[string]any)
	if details == nil {
		details = map[string]any{}
	}
	details["redirect"] = path
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
