package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation       = "VALIDATION"
	CodeTransport        = "TRANSPORT"
	CodeSchemaViolation  = "SCHEMA_VIOLATION"
	CodeBusy             = "BUSY"
	CodeCanceled         = "CANCELED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeCaptureFailed    = "CAPTURE_FAILED"
)

// AppError carries a stable code, a user-facing message and the wrapped cause.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so sentinels compare equal to wrapped copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an AppError without a cause.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates an AppError around err. A nil err yields nil.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StatusOf returns the HTTP status for err, 500 when err is not an AppError.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.HTTPStatus != 0 {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}

var (
	ErrCanceled = New(CodeCanceled, "acquisition canceled", http.StatusOK)
	ErrBusy     = New(CodeBusy, "another operation is in progress", http.StatusConflict)
)

// Transport wraps a network, decode or I/O failure.
func Transport(err error) *AppError {
	return Wrap(err, CodeTransport, "transport failure", http.StatusBadGateway)
}

// SchemaViolation wraps a response body that does not match the expected shape.
func SchemaViolation(err error) *AppError {
	return Wrap(err, CodeSchemaViolation, "response schema violation", http.StatusBadGateway)
}
