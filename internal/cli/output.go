package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"fragmentone/internal/clock"
	"fragmentone/internal/exchange"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the exchange refused or a store call failed
	ExitCommandError = 2 // bad flags or arguments
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics, kept off Writer so JSON stays parseable
	Verbose   bool
}

// CLIResponse is the JSON envelope for every command.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

type CLIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints err in the configured format. The caller still returns err.
func (f *OutputFormatter) Error(err error) {
	if f.Format == "json" {
		json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: GetExitCode(err), Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(f.errWriter(), "Error: %v\n", err)
}

func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// ViewOutput is what show, submit and watch print.
type ViewOutput struct {
	Date     clock.Day `json:"date"`
	AuthorID string    `json:"author_id"`
	exchange.View
	Fallback bool `json:"fallback"`
}

func newViewOutput(day clock.Day, authorID string, v exchange.View) ViewOutput {
	return ViewOutput{Date: day, AuthorID: authorID, View: v, Fallback: v.IsFallback()}
}

func (o ViewOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", o.Date)
	if !o.HasSubmittedToday {
		b.WriteString("You have not shared a fragment today.")
		return b.String()
	}
	if o.PeerFragmentText == "" {
		b.WriteString("You shared a fragment today.")
		return b.String()
	}
	if o.Fallback {
		b.WriteString(o.PeerFragmentText)
		return b.String()
	}
	b.WriteString("Someone else wrote today:\n\n  ")
	b.WriteString(strings.ReplaceAll(o.PeerFragmentText, "\n", "\n  "))
	return b.String()
}

// SweepOutput is what sweep prints.
type SweepOutput struct {
	Date    clock.Day `json:"date"`
	Skipped bool      `json:"skipped"`
	Deleted int64     `json:"deleted"`
}

func (o SweepOutput) String() string {
	if o.Skipped {
		return fmt.Sprintf("Already swept on %s.", o.Date)
	}
	return fmt.Sprintf("Swept %d fragments from before %s.", o.Deleted, o.Date)
}
