package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing a query.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the nested path being joined, when the error is inside a join.
	Path string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnresolvedParent indicates a join's parent filter was read
	// before it was bound.
	ErrCodeUnresolvedParent RuntimeErrorCode = "UNRESOLVED_PARENT"

	// ErrCodeUnsupportedQuery indicates a query or filter node the engine
	// cannot evaluate.
	ErrCodeUnsupportedQuery RuntimeErrorCode = "UNSUPPORTED_QUERY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRuntimeCode reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func IsRuntimeCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func unsupported(node any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupportedQuery,
		Message: fmt.Sprintf("cannot evaluate %T", node),
	}
}
