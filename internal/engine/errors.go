package engine

import (
	"errors"
	"fmt"
)

// Error is an engine failure with a category the transport layer can map
// to a status code or exit code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is safe to show to callers.
	Message string

	// ContactID identifies the affected contact, when there is one.
	ContactID int64

	// Err is the underlying cause. It is logged for operators and never
	// shown to callers.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates neither email nor phone was supplied.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeNotFound indicates the contact does not exist or is soft-deleted.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeBrokenLink indicates a contact whose linked_id chain does not
	// reach a primary.
	ErrCodeBrokenLink ErrorCode = "BROKEN_LINK"

	// ErrCodeStoreFailure indicates the transaction failed and was rolled back.
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ContactID != 0 {
		return fmt.Sprintf("%s: %s (contact=%d)", e.Code, e.Message, e.ContactID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidRequest returns true if err is an invalid request error.
func IsInvalidRequest(err error) bool {
	return CodeOf(err) == ErrCodeInvalidRequest
}

// IsNotFound returns true if err is a not found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsBrokenLink returns true if err is a broken link error.
func IsBrokenLink(err error) bool {
	return CodeOf(err) == ErrCodeBrokenLink
}

// NewInvalidRequestError creates an Error for a request without identifiers.
func NewInvalidRequestError() *Error {
	return &Error{
		Code:    ErrCodeInvalidRequest,
		Message: "Either email or phoneNumber must be provided",
	}
}

// NewNotFoundError creates an Error for a missing contact.
func NewNotFoundError(id int64) *Error {
	return &Error{
		Code:      ErrCodeNotFound,
		Message:   "contact not found",
		ContactID: id,
	}
}

// NewBrokenLinkError creates an Error for a contact with no reachable primary.
func NewBrokenLinkError(id int64) *Error {
	return &Error{
		Code:      ErrCodeBrokenLink,
		Message:   "contact does not resolve to a primary",
		ContactID: id,
	}
}

// NewStoreError wraps a failed transaction.
func NewStoreError(err error) *Error {
	return &Error{
		Code:    ErrCodeStoreFailure,
		Message: "store failure",
		Err:     err,
	}
}
