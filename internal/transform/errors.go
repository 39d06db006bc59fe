package transform

import (
	"errors"
	"fmt"

	"github.com/roach88/ingestlab/internal/ir"
)

// ErrorCode categorizes transform failures.
type ErrorCode string

const (
	// ErrCodeNumericParse indicates to_number could not parse its input.
	ErrCodeNumericParse ErrorCode = "NUMERIC_PARSE"

	// ErrCodeDateParse indicates no parse_date format matched.
	ErrCodeDateParse ErrorCode = "DATE_PARSE"

	// ErrCodeExpressionDisabled indicates an expression step ran while
	// expressions are disabled.
	ErrCodeExpressionDisabled ErrorCode = "EXPRESSION_DISABLED"

	// ErrCodeExpressionExecution indicates an expression was rejected or
	// failed at runtime.
	ErrCodeExpressionExecution ErrorCode = "EXPRESSION_EXECUTION"
)

// Error is a failed transform step.
type Error struct {
	Code    ErrorCode
	Step    ir.StepKind
	Input   string // the step's input rendered as text
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Step, e.Message)
	if e.Input != "" {
		msg += fmt.Sprintf(" (input %q)", e.Input)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsTransformError reports whether err is a transform failure.
func IsTransformError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

// CodeOf returns the code of a transform failure.
func CodeOf(err error) (ErrorCode, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}
