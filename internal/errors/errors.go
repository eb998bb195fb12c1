package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Folio error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"    // 400
	ErrForbidden        ErrorCode = "FORBIDDEN"          // 403
	ErrNotFound         ErrorCode = "NOT_FOUND"          // 404
	ErrSessionClosed    ErrorCode = "SESSION_CLOSED"     // 409
	ErrMediaTooLarge    ErrorCode = "MEDIA_TOO_LARGE"    // 413
	ErrInvalidMediaType ErrorCode = "INVALID_MEDIA_TYPE" // 415
	ErrInternal         ErrorCode = "INTERNAL"           // 500
)

// FolioError represents a structured error with code, status, and details.
type FolioError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *FolioError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *FolioError {
	return &FolioError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewForbidden creates a 403 error, used when editing is unavailable
// because the gallery is running inside a foreign frame.
func NewForbidden(msg string) *FolioError {
	return &FolioError{
		Code:    ErrForbidden,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error.
func NewNotFound(identifier string) *FolioError {
	return &FolioError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewSessionClosed creates a 409 error for draft edits attempted while no
// editing session is open.
func NewSessionClosed() *FolioError {
	return &FolioError{
		Code:    ErrSessionClosed,
		Status:  409,
		Message: "no editing session is open",
	}
}

// NewMediaTooLarge creates a 413 error when an upload exceeds its kind's byte limit.
func NewMediaTooLarge(kind string, max, actual int64) *FolioError {
	return &FolioError{
		Code:    ErrMediaTooLarge,
		Status:  413,
		Message: fmt.Sprintf("%s exceeds maximum size: %d bytes (max %d)", kind, actual, max),
		Details: map[string]any{"kind": kind, "max_bytes": max, "actual_bytes": actual},
	}
}

// NewInvalidMediaType creates a 415 error when the declared media type does
// not match the kind expected by the target slot.
func NewInvalidMediaType(kind, declared string) *FolioError {
	return &FolioError{
		Code:    ErrInvalidMediaType,
		Status:  415,
		Message: fmt.Sprintf("please upload an %s file (got %q)", kind, declared),
		Details: map[string]any{"kind": kind, "declared_type": declared},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The wrapped error is kept in Details for logging; the message stays generic.
func NewInternal(err error) *FolioError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &FolioError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a FolioError with the given code.
func Is(err error, code ErrorCode) bool {
	var fErr *FolioError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}
