package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for memory and lineage operations.
type ErrorCode string

const (
	// ErrCodeDimensionMismatch indicates an embedding vector whose length does
	// not match the configured index dimension.
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	// ErrCodeDuplicateID indicates an insert for an id that is already indexed.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"
	// ErrCodeUnknownTrace indicates an operation on a trace id that is not open.
	ErrCodeUnknownTrace ErrorCode = "UNKNOWN_TRACE"
	// ErrCodeInvalidInputReference indicates a reasoning step referencing a node
	// that does not exist in the trace.
	ErrCodeInvalidInputReference ErrorCode = "INVALID_INPUT_REFERENCE"
	// ErrCodeValidationFailed indicates a sealed trace failed consistency validation.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeIndexUnavailable indicates the vector index is corrupted or unavailable.
	// Callers fall back to a linear scan; this code is surfaced via logs/metrics only.
	ErrCodeIndexUnavailable ErrorCode = "INDEX_UNAVAILABLE"
	// ErrCodeEvictionConflict indicates an attempted eviction of an item that is
	// still referenced by an open lineage trace.
	ErrCodeEvictionConflict ErrorCode = "EVICTION_CONFLICT"
	// ErrCodeNotFound indicates the requested entity does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeTraceSealed indicates a mutation on an already sealed trace.
	ErrCodeTraceSealed ErrorCode = "TRACE_SEALED"
)

// MemoryError represents a structured error for memory and lineage operations.
type MemoryError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *MemoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MemoryError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *MemoryError) WithContext(key string, value interface{}) *MemoryError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *MemoryError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// DimensionMismatch creates a dimension mismatch error.
func DimensionMismatch(want, got int) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeDimensionMismatch,
		Message: fmt.Sprintf("embedding dimension mismatch: want %d, got %d", want, got),
	}
}

// DuplicateID creates a duplicate id error.
func DuplicateID(id string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeDuplicateID,
		Message: fmt.Sprintf("id already indexed: %s", id),
	}
}

// UnknownTrace creates an unknown trace error.
func UnknownTrace(traceID string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeUnknownTrace,
		Message: fmt.Sprintf("no open trace: %s", traceID),
	}
}

// InvalidInputReference creates an invalid input reference error.
func InvalidInputReference(nodeID string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeInvalidInputReference,
		Message: fmt.Sprintf("input node does not exist in trace: %s", nodeID),
	}
}

// ValidationFailed creates a validation failed error carrying the violated invariant.
func ValidationFailed(violation string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeValidationFailed,
		Message: violation,
	}
}

// IndexUnavailable creates an index unavailable error.
func IndexUnavailable(cause error) *MemoryError {
	return &MemoryError{Code: ErrCodeIndexUnavailable, Message: "vector index unavailable", Cause: cause}
}

// EvictionConflict creates an eviction conflict error.
func EvictionConflict(itemID, traceID string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeEvictionConflict,
		Message: fmt.Sprintf("item %s is referenced by open trace %s", itemID, traceID),
	}
}

// NotFound creates a not found error.
func NotFound(kind, id string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *MemoryError {
	return &MemoryError{Code: ErrCodeInvalidArgument, Message: msg}
}

// TraceSealed creates a trace sealed error.
func TraceSealed(traceID string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeTraceSealed,
		Message: fmt.Sprintf("trace already sealed: %s", traceID),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *MemoryError {
	return &MemoryError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if memErr, ok := err.(*MemoryError); ok {
		return memErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a MemoryError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if memErr, ok := err.(*MemoryError); ok {
		return memErr.Code
	}
	return defaultCode
}
