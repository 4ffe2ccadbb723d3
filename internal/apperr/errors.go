// Package apperr defines the error taxonomy shared by the store service
// layers and its mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindOutOfStock        Kind = "out_of_stock"
	KindEmptyCart         Kind = "empty_cart"
	KindNoValidSelection  Kind = "no_valid_selection"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindDuplicateReview   Kind = "duplicate_review"
	KindReviewNotFound    Kind = "review_not_found"
	KindInternal          Kind = "internal"
)

// Error is an application error carrying a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind, so the sentinels
// below work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrOutOfStock        = &Error{Kind: KindOutOfStock, Message: "out of stock"}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart, Message: "your cart is empty"}
	ErrNoValidSelection  = &Error{Kind: KindNoValidSelection, Message: "no valid products selected"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "permission denied"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrDuplicateReview   = &Error{Kind: KindDuplicateReview, Message: "you have already reviewed this product"}
	ErrReviewNotFound    = &Error{Kind: KindReviewNotFound, Message: "review not found"}
	ErrInternal          = &Error{Kind: KindInternal, Message: "internal server error"}
)

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(field, message string) *Error {
	return New(KindInvalidInput, field+": "+message)
}

func NotFound(what string) *Error {
	return New(KindNotFound, what+" not found")
}

func OutOfStock(productName string) *Error {
	return New(KindOutOfStock, fmt.Sprintf("product %q is out of stock", productName))
}

func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, fmt.Sprintf("invalid status transition from %s to %s", from, to))
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code the HTTP layer responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindOutOfStock, KindEmptyCart, KindNoValidSelection,
		KindInvalidTransition, KindDuplicateReview:
		return http.StatusBadRequest
	case KindNotFound, KindReviewNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to send to clients. Internal errors
// never expose their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return ErrInternal.Message
}
