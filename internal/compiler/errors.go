package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ErrorCode classifies compile failures. All of them describe a malformed
// request; none is retryable.
type ErrorCode string

const (
	// CodeMalformedSpec: the body has the wrong shape, e.g. a nested query
	// with neither query nor filter.
	CodeMalformedSpec ErrorCode = "MALFORMED_SPEC"

	// CodeMissingPath: a nested query without path.
	CodeMissingPath ErrorCode = "MISSING_PATH"

	// CodeUnknownPath: path does not resolve to an object mapping.
	CodeUnknownPath ErrorCode = "UNKNOWN_PATH"

	// CodeNotNested: path resolves to an object that is not nested.
	CodeNotNested ErrorCode = "NOT_NESTED"

	// CodeInvalidScoreMode: score_mode is not avg, max, total, sum or none.
	CodeInvalidScoreMode ErrorCode = "INVALID_SCORE_MODE"

	// CodeUnsupportedField: a field the query kind does not accept.
	CodeUnsupportedField ErrorCode = "UNSUPPORTED_FIELD"

	// CodeUnknownQuery: no query or filter parser is registered for a name.
	CodeUnknownQuery ErrorCode = "UNKNOWN_QUERY"

	// CodeDepthExceeded: the body nests deeper than the configured limit.
	CodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"

	// CodeInvalidValue: a literal of the wrong kind (floats, null, objects
	// where a term value is expected).
	CodeInvalidValue ErrorCode = "INVALID_VALUE"
)

// CompileError is a typed compile failure carrying the offending field and
// value.
type CompileError struct {
	Code    ErrorCode
	Field   string
	Value   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.Value != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Value)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s:%d:%d: %s: %s",
			e.Code, e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, msg)
}

// IsCode reports whether err is a CompileError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of a CompileError, or "" for any other error.
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Code: CodeMalformedSpec, Field: "cue", Message: err.Error()}
	}

	// Return first error with position info
	firstErr := errs[0]
	ce := &CompileError{
		Code:    CodeMalformedSpec,
		Field:   "cue",
		Message: firstErr.Error(),
	}
	if positions := cueerrors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
