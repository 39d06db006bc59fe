package expr

import (
	"errors"
	"fmt"
)

// Limits enforced on every program.
const (
	MaxSourceLength = 200
	MaxDepth        = 32
	MaxNodes        = 256
	MaxStringLength = 4096
)

// forbiddenTokens are rejected anywhere in the (lower-cased) source, string
// literals included.
var forbiddenTokens = []string{"__", "import", "exec", "eval", "open", "write", "os.", ";", "`"}

// ErrSourceRejected is wrapped by every pre-parse rejection.
var ErrSourceRejected = errors.New("expression source rejected")

// SyntaxError reports malformed source.
type SyntaxError struct {
	Pos     int // byte offset into the source
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Message)
}

// EvalError reports a runtime failure.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return "evaluation failed: " + e.Message
}

func evalErr(format string, args ...any) *EvalError {
	return &EvalError{Message: fmt.Sprintf(format, args...)}
}
