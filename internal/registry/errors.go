package registry

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// CodeAlreadyInitialized indicates a second Initialize.
	CodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"

	// CodeNotInitialized indicates CreateDomain before Initialize.
	CodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// CodeDuplicateRecord indicates the allocator handed out an occupied key.
	// The store is inconsistent; do not retry.
	CodeDuplicateRecord ErrorCode = "DUPLICATE_RECORD"

	// CodeRecordNotFound indicates an update or lookup of an unknown id.
	CodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// CodeInvalidName indicates a name that is not UTF-8 or too long.
	CodeInvalidName ErrorCode = "INVALID_NAME"

	// CodeUnauthorized indicates a missing or invalid owner signature.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Error is a registry failure with a stable code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// DomainID is the affected id, when one is known.
	DomainID *uint64

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.DomainID != nil {
		msg = fmt.Sprintf("%s (id=%d)", msg, *e.DomainID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrAlreadyInitialized = &Error{Code: CodeAlreadyInitialized, Message: "counter already initialized"}
	ErrNotInitialized     = &Error{Code: CodeNotInitialized, Message: "counter not initialized"}
	ErrDuplicateRecord    = &Error{Code: CodeDuplicateRecord, Message: "record key already occupied"}
	ErrRecordNotFound     = &Error{Code: CodeRecordNotFound, Message: "record not found"}
	ErrInvalidName        = &Error{Code: CodeInvalidName, Message: "invalid name"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "owner signature invalid"}
)

func newError(code ErrorCode, msg string, id *uint64, cause error) *Error {
	return &Error{Code: code, Message: msg, DomainID: id, Err: cause}
}

func idRef(id uint64) *uint64 {
	return &id
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsAlreadyInitialized returns true if err is an ALREADY_INITIALIZED error.
func IsAlreadyInitialized(err error) bool { return CodeOf(err) == CodeAlreadyInitialized }

// IsNotInitialized returns true if err is a NOT_INITIALIZED error.
func IsNotInitialized(err error) bool { return CodeOf(err) == CodeNotInitialized }

// IsDuplicateRecord returns true if err is a DUPLICATE_RECORD error.
func IsDuplicateRecord(err error) bool { return CodeOf(err) == CodeDuplicateRecord }

// IsRecordNotFound returns true if err is a RECORD_NOT_FOUND error.
func IsRecordNotFound(err error) bool { return CodeOf(err) == CodeRecordNotFound }

// IsInvalidName returns true if err is an INVALID_NAME error.
func IsInvalidName(err error) bool { return CodeOf(err) == CodeInvalidName }

// IsUnauthorized returns true if err is an UNAUTHORIZED error.
func IsUnauthorized(err error) bool { return CodeOf(err) == CodeUnauthorized }
