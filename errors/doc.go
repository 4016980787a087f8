// Package errors provides the structured error type shared by every
// tablemut package. An AppError carries a machine-readable code, a
// human-readable message, optional details and the underlying cause, plus
// the HTTP status the transform service answers with.
//
// Failures in a table pipeline are deterministic and input-dependent, so
// no code is ever retryable.
package errors
