package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation failure (warnings, failed gates, constraint issues, failed simulation)
	ExitCommandError = 2 // Command error (invalid paths, unreadable rules, database errors)
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ExitError carries the process exit code out of a command's RunE.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code: ExitSuccess for nil, the
// carried code for an ExitError anywhere in the chain, ExitFailure otherwise.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// CLIResponse is the JSON envelope every command writes in json mode.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error member of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // loader codes E001..E008
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter so they never interleave with JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // defaults to Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == FormatJSON }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	if err := json.NewEncoder(f.Writer).Encode(resp); err != nil {
		return fmt.Errorf("encode %s response: %w", resp.Status, err)
	}
	return nil
}

// Report writes data in the envelope, or hands the writer to text.
func (f *OutputFormatter) Report(data any, text func(w io.Writer)) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Success writes data; text mode prints it with its default formatting.
func (f *OutputFormatter) Success(data any) error {
	return f.Report(data, func(w io.Writer) { fmt.Fprintln(w, data) })
}

// Error writes a coded error. Details are shown in text mode only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
