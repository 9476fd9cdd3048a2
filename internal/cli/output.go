package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/generr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Generation or audit failure
	ExitCommandError = 2 // Command or configuration error
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Configuration errors map to ExitCommandError; anything else that is not
// an ExitError maps to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if generr.IsConfigurationError(err) {
		return ExitCommandError
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // generr code or CLI code
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// errorCode returns the code reported for err: the generr code when err is
// classified, ErrCodeGeneric otherwise.
func errorCode(err error) string {
	if code := generr.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}

// CLI error codes for failures outside the generr taxonomy.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeWriteFailed = "E007" // File write error
)

var statusMarks = map[audit.Status]string{
	audit.StatusPass: "✓",
	audit.StatusWarn: "!",
	audit.StatusFail: "✗",
}

// RenderReport writes an audit report as text, one line per check.
func RenderReport(w io.Writer, r *audit.Report) error {
	var b []byte
	if r.RunID != "" {
		b = fmt.Appendf(b, "Run %s\n", r.RunID)
	}
	mode := "lenient"
	if r.Strict {
		mode = "strict"
	}
	b = fmt.Appendf(b, "Audit (%s)\n", mode)
	for _, c := range r.Checks {
		b = fmt.Appendf(b, "  %s %-13s %s: %s\n", statusMarks[c.Status], c.Class, c.Name, c.Message)
	}
	s := r.Summary()
	b = fmt.Appendf(b, "%d passed, %d warned, %d failed\n", s.Pass, s.Warn, s.Fail)
	_, err := w.Write(b)
	return err
}
