package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/wire"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Reflect bool
	Check   string
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or apply the wire frame schema",
		Long: `Print the JSON Schema that every transport frame is validated against.

With --reflect the schema is generated from the Go frame type instead of
the embedded document. With --check each line of the given file (or "-"
for stdin) is validated as one frame.

Examples:
  netsync schema
  netsync schema --reflect
  netsync schema --check frames.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Reflect, "reflect", false, "generate the schema from the frame type")
	cmd.Flags().StringVar(&opts.Check, "check", "", "validate newline-delimited frames from a file")

	return cmd
}

// FrameCheckResult reports the validation of one frame line.
type FrameCheckResult struct {
	Line  int    `json:"line"`
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()

	if opts.Check != "" {
		return runFrameCheck(opts, cmd)
	}

	var doc []byte
	if opts.Reflect {
		var err error
		doc, err = wire.GenerateSchema()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to generate schema", err)
		}
	} else {
		doc = []byte(wire.FrameSchema())
	}

	if opts.Format == "json" {
		return writeResponse(w, CLIResponse{Status: "ok", Data: json.RawMessage(doc)})
	}
	_, err := w.Write(append(bytes.TrimRight(doc, "\n"), '\n'))
	return err
}

func runFrameCheck(opts *SchemaOptions, cmd *cobra.Command) error {
	var in io.Reader = cmd.InOrStdin()
	if opts.Check != "-" {
		f, err := os.Open(opts.Check)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open frames", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read frames", err)
	}

	v, err := wire.NewValidator()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compile frame schema", err)
	}

	var results []FrameCheckResult
	invalid := 0
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		res := FrameCheckResult{Line: i + 1}
		if f, err := v.DecodeValid(line); err != nil {
			res.Error = err.Error()
			invalid++
		} else {
			res.Type = f.Type
		}
		results = append(results, res)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: results}
		if invalid > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_FRAME_INVALID", Message: fmt.Sprintf("%d invalid frame(s)", invalid)}
		}
		if err := writeResponse(w, resp); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(w, "✗ line %d: %s\n", r.Line, r.Error)
			} else if opts.Verbose {
				fmt.Fprintf(w, "✓ line %d: %s\n", r.Line, r.Type)
			}
		}
		fmt.Fprintf(w, "%d frame(s), %d invalid\n", len(results), invalid)
	}

	if invalid > 0 {
		return exitErrorf(ExitFailure, "%d invalid frame(s)", invalid)
	}
	return nil
}
