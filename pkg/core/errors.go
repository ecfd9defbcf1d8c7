package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that caller-supplied input is malformed
	// (for example an empty user id or message).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageOperation indicates that a store operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrLLMOperation indicates that the generative collaborator failed.
	ErrLLMOperation = errors.New("llm operation failed")

	// ErrAnalyzerOperation indicates that the understanding collaborator failed.
	ErrAnalyzerOperation = errors.New("analyzer operation failed")
)

// EngineError wraps errors with the name of the engine operation that
// failed, keeping error messages attributable without stack traces.
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns "chatmem: <Op>: <Err>".
func (e *EngineError) Error() string {
	return fmt.Sprintf("chatmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As work
// through an EngineError.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err with the operation name. Returns nil when err is
// nil, so it can wrap return values unconditionally.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Op:  op,
		Err: err,
	}
}
