package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Table pipeline errors
const (
	// ErrCodeHeaderNotFound indicates no source row satisfied the header predicate.
	ErrCodeHeaderNotFound ErrorCode = "HEADER_NOT_FOUND"
	// ErrCodeRowShapeMismatch indicates a mutated row length differs from the header length.
	ErrCodeRowShapeMismatch ErrorCode = "ROW_SHAPE_MISMATCH"
	// ErrCodeEmptyTableFlush indicates an end-of-rows flush with nothing accumulated.
	ErrCodeEmptyTableFlush ErrorCode = "EMPTY_TABLE_FLUSH"
	// ErrCodeResourceAcquisition indicates the underlying stream could not be opened.
	ErrCodeResourceAcquisition ErrorCode = "RESOURCE_ACQUISITION_FAILED"
	// ErrCodeAlreadyConsumed indicates a single-pass row sequence was requested twice.
	ErrCodeAlreadyConsumed ErrorCode = "ALREADY_CONSUMED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates the resource is busy or already exists.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)
