package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Schema error codes (E100-E199)
const (
	ErrMalformedDocument  = "E101" // wrong type or shape
	ErrMissingField       = "E102" // required key absent or empty
	ErrDuplicateName      = "E103" // duplicate column or field name
	ErrUnknownKind        = "E104" // resource kind is not table or list
	ErrInvalidTransform   = "E105" // unsupported or malformed transform step
	ErrExpressionDisabled = "E106" // expr step in a document without allow_expressions
	ErrCyclicInheritance  = "E107" // extends chain loops back on itself
	ErrInheritanceKind    = "E108" // resource extends a parent of another kind
	ErrUnknownParent      = "E109" // extends names a resource that does not exist
	ErrInvalidGate        = "E110" // quality gate threshold malformed or out of range
)

// SchemaError reports an invalid rule document.
type SchemaError struct {
	Code     string   `json:"code"`
	Resource string   `json:"resource,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Path     []string `json:"path,omitempty"` // inheritance chain for E107
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if e.Resource != "" {
		fmt.Fprintf(&b, "resource %q: ", e.Resource)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Message)
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Path, " -> "))
	}
	return b.String()
}

func schemaErr(code, resource, field, format string, args ...any) *SchemaError {
	return &SchemaError{
		Code:     code,
		Resource: resource,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	}
}

// hasCode reports whether err wraps a *SchemaError with the given code.
func hasCode(err error, code string) bool {
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsCyclicInheritance reports whether err is a cyclic-inheritance error.
func IsCyclicInheritance(err error) bool { return hasCode(err, ErrCyclicInheritance) }

// IsTypeMismatch reports whether err is an inheritance kind mismatch.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrInheritanceKind) }

// IsExpressionDisabled reports whether err rejected an expression step
// because the document does not allow expressions.
func IsExpressionDisabled(err error) bool { return hasCode(err, ErrExpressionDisabled) }

// IsDuplicateName reports whether err is a duplicate column or field error.
func IsDuplicateName(err error) bool { return hasCode(err, ErrDuplicateName) }

// CompileError represents a rule file decoding error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
