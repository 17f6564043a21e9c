package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/value"
)

// EncodeResult is the canonical form of one Typed Value.
type EncodeResult struct {
	Kind      string `json:"kind"`
	Canonical string `json:"canonical"`
	ContentID string `json:"content_id"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode [envelope]",
		Short: "Check and canonicalize a Typed Value envelope",
		Long: `Decode a Typed Value envelope, re-encode it and print its canonical
JSON with its content id. The envelope is read from stdin when no
argument is given.

Examples:
  netsync encode '{"type":"Vector3","value":{"X":1,"Y":2,"Z":3}}'
  echo '{"type":"Float","value":0.5}' | netsync encode --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				in = strings.NewReader(args[0])
			}
			return runEncode(rootOpts, in, cmd)
		},
	}
}

func runEncode(opts *RootOptions, in io.Reader, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := io.ReadAll(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read envelope", err)
	}

	v, err := value.Unmarshal([]byte(strings.TrimSpace(string(data))))
	if err != nil {
		_ = formatter.Error("INVALID_VALUE", err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid envelope", err)
	}

	canonical, err := value.MarshalCanonical(v)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to canonicalize", err)
	}
	id, err := value.ContentID(value.DomainEvent, v)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash", err)
	}

	result := EncodeResult{Kind: v.Kind().String(), Canonical: string(canonical), ContentID: id}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, result.Canonical)
	formatter.VerboseLog("kind: %s", result.Kind)
	formatter.VerboseLog("content id: %s", result.ContentID)
	return nil
}
