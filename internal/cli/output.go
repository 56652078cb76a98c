package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/spf13/cobra"

	"github.com/roach88/metricc/internal/compiler"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a visualization, definition set or scenario failed
	ExitCommandError = 2 // unreadable input, bad flags, registry errors
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every JSON response.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a JSON response. Code is either an E0xx
// command code or a compiler code such as MISSING_ATTRIBUTE.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// errorOf converts err to a CLIError. Compiler errors keep their code and
// details; anything else is E001.
func errorOf(err error) *CLIError {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		e := &CLIError{Code: string(ce.Code), Message: ce.Message}
		if ce.Measure != "" || len(ce.Details) > 0 {
			details := maps.Clone(ce.Details)
			if details == nil {
				details = map[string]string{}
			}
			if ce.Measure != "" {
				details["measure"] = ce.Measure
			}
			e.Details = details
		}
		return e
	}
	var de *compiler.DependencyError
	if errors.As(err, &de) {
		return &CLIError{
			Code:    string(compiler.ErrCodeUnsatisfiableDependency),
			Message: de.Error(),
			Details: map[string]any{"unresolved": de.Unresolved, "cycles": de.Cycles},
		}
	}
	if code := compiler.CodeOf(err); code != "" {
		return &CLIError{Code: string(code), Message: err.Error()}
	}
	var le *LoadError
	if errors.As(err, &le) {
		return &CLIError{Code: le.Code, Message: le.Message}
	}
	return &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// OutputFormatter writes command results as text or JSON. Diagnostics go to
// ErrWriter so that JSON on Writer stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// JSON reports whether results are written as JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data as an "ok" response, or prints it as text.
func (f *OutputFormatter) Success(data any) error {
	if !f.JSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes an "error" response, or an "Error [code]: message" line.
// Details are printed in text mode only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
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

// Fail reports an error that stops the command and returns the matching
// ExitCommandError.
func (f *OutputFormatter) Fail(code, message string) error {
	_ = f.Error(code, message, nil)
	return NewExitError(ExitCommandError, code+": "+message)
}

// FailWith reports a load or validation error of an input file and
// returns the matching ExitCommandError.
func (f *OutputFormatter) FailWith(err error) error {
	e := errorOf(err)
	_ = f.Error(e.Code, e.Message, e.Details)
	return WrapExitError(ExitCommandError, e.Code, err)
}

// VerboseLog prints a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diag(), format+"\n", args...)
	}
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
