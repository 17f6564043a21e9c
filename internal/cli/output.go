package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// CLIResponse is the envelope every --format json command prints.
type CLIResponse struct {
	Status    string    `json:"status"` // ok or error
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// CLIError is a coded failure: a schema code such as E003, or one of the
// command codes (INVALID_VALUE, E_FRAME_INVALID, ...).
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter so they never interleave with JSON on Writer.
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

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success prints data. Text output uses data's default formatting, so
// commands with a richer text form print it themselves.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints a coded failure. Details only reach text output in
// verbose mode.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(f.Writer, "✗ %s: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "  details: %v\n", details)
		return err
	}
	return nil
}

// VerboseLog prints a diagnostic line when --verbose is set.
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

// writeResponse prints resp indented, for commands whose JSON output is
// read by people as often as by tools.
func writeResponse(w io.Writer, resp CLIResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
