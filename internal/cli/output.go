package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/nestq/internal/compiler"
)

// Process exit statuses.
const (
	ExitOK      = 0
	ExitFailure = 1 // the command ran but something it checked or wrote failed
	ExitUsage   = 2 // the command could not start: bad flags, inputs, config or query
)

// Error codes carried in the error envelope. A query that fails to compile
// reports the compiler's code (UNKNOWN_PATH, MALFORMED_SPEC, ...) instead.
const (
	ErrCodeGeneric      = "E001"
	ErrCodeNotFound     = "E002"
	ErrCodeConfig       = "E003" // config or mapping
	ErrCodeStore        = "E004"
	ErrCodeInvalidInput = "E005"
	ErrCodeSearch       = "E006"
)

// Failure carries the exit status a command wants the process to end with.
type Failure struct {
	Status int
	Msg    string
	Cause  error
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return f.Msg
	}
	return f.Msg + ": " + f.Cause.Error()
}

func (f *Failure) Unwrap() error { return f.Cause }

func newFailure(status int, msg string) *Failure {
	return &Failure{Status: status, Msg: msg}
}

func wrapFailure(status int, msg string, cause error) *Failure {
	return &Failure{Status: status, Msg: msg, Cause: cause}
}

// ExitCode maps a command error to a process exit status. Errors that are
// not a Failure exit with ExitFailure.
func ExitCode(err error) int {
	var f *Failure
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &f):
		return f.Status
	default:
		return ExitFailure
	}
}

// Envelope wraps every --format json document the CLI prints.
type Envelope struct {
	Status       string     `json:"status"`
	Data         any        `json:"data,omitempty"`
	Error        *ErrorBody `json:"error,omitempty"`
	InvocationID string     `json:"invocation_id,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Printer writes command results either as text or as one Envelope.
type Printer struct {
	JSON    bool
	Out     io.Writer
	Diag    io.Writer // debug lines; Out when nil
	Verbose bool
}

func newPrinter(opts *RootOptions, out, diag io.Writer) *Printer {
	return &Printer{JSON: opts.Format == "json", Out: out, Diag: diag, Verbose: opts.Verbose}
}

// envelope writes e as a single JSON line.
func (p *Printer) envelope(e Envelope) error {
	return json.NewEncoder(p.Out).Encode(e)
}

// Result prints data. Text mode relies on data's String method when it has one.
func (p *Printer) Result(data any) error {
	if p.JSON {
		return p.envelope(Envelope{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.Out, data)
	return err
}

// Problem prints an error report. Details only reach text output with --verbose.
func (p *Printer) Problem(code, message string, details any) error {
	if p.JSON {
		return p.envelope(Envelope{
			Status: "error",
			Error:  &ErrorBody{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(p.Out, "Error [%s]: %s\n", code, message)
	if p.Verbose && details != nil {
		fmt.Fprintf(p.Out, "  %v\n", details)
	}
	return nil
}

// Debugf writes to Diag under --verbose, keeping Out parseable.
func (p *Printer) Debugf(format string, args ...any) {
	if !p.Verbose {
		return
	}
	w := p.Diag
	if w == nil {
		w = p.Out
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func (p *Printer) fail(status int, code, message string, details any) error {
	_ = p.Problem(code, message, details)
	return newFailure(status, code+": "+message)
}

// compileFailure reports a compiler error, with its source position when known.
func (p *Printer) compileFailure(err error) error {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return p.fail(ExitUsage, ErrCodeGeneric, err.Error(), nil)
	}

	details := map[string]any{"field": ce.Field}
	if ce.Value != "" {
		details["value"] = ce.Value
	}
	if pos := ce.Pos; pos.IsValid() {
		details["file"] = pos.Filename()
		details["line"] = pos.Line()
		details["column"] = pos.Column()
		if !p.JSON {
			fmt.Fprintf(p.Out, "%s:%d:%d\n", pos.Filename(), pos.Line(), pos.Column())
		}
	}
	_ = p.Problem(string(ce.Code), ce.Message, details)
	return wrapFailure(ExitUsage, "compile failed", err)
}
