package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// --- Table pipeline constructors ---

// HeaderNotFound creates a new AppError for a source that ended before a header row matched.
func HeaderNotFound(source string, linesScanned int) *AppError {
	return &AppError{
		Code: ErrCodeHeaderNotFound, Message: fmt.Sprintf("Unable to find header in %s.", source),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"source": source, "lines_scanned": linesScanned},
	}
}

// RowShapeMismatch creates a new AppError for a row whose length differs from the header.
func RowShapeMismatch(stage string, line, got, want int) *AppError {
	return &AppError{
		Code: ErrCodeRowShapeMismatch,
		Message: fmt.Sprintf("Line %d: number of values the row mutation returned (%d) doesn't match the number of values in the header row (%d).",
			line, got, want),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"stage": stage, "line": line, "got": got, "want": want},
	}
}

// EmptyTableFlush creates a new AppError for an end-of-rows flush with no accumulated row.
func EmptyTableFlush(stage string) *AppError {
	return &AppError{
		Code: ErrCodeEmptyTableFlush, Message: "End of rows reached before any row was accumulated.",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"stage": stage},
	}
}

// ResourceAcquisition creates a new AppError for a stream that could not be opened.
func ResourceAcquisition(resource string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeResourceAcquisition, Message: fmt.Sprintf("Unable to open %s.", resource),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"resource": resource}, Cause: cause,
	}
}

// AlreadyConsumed creates a new AppError for a second pass over a single-pass table.
func AlreadyConsumed(table string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyConsumed, Message: fmt.Sprintf("Rows of %s were already consumed; build a new pipeline for another pass.", table),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"table": table},
	}
}

// --- Common Error Constructors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// Conflict creates a new AppError for a resource in a conflicting state.
func Conflict(resource, message string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: message,
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"resource": resource},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
