package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Output    string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a session journal",
		Long: `Write one session's journal as zstd-compressed JSON lines.

Examples:
  netsync export --db ./journal.db --session 0194... -o session.jsonl.zst`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id to export (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Create(opts.Output)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output", err)
	}
	if err := st.Export(ctx, f, opts.SessionID); err != nil {
		f.Close()
		os.Remove(opts.Output)
		return WrapExitError(ExitCommandError, "export failed", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return formatter.Success(map[string]string{"session_id": opts.SessionID, "output": opts.Output})
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported session %s to %s\n", opts.SessionID, opts.Output)
	return nil
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exported session journal",
		Long: `Load a session written by export into a journal, creating the journal
if needed. Records already present are skipped.

Examples:
  netsync import --db ./journal.db session.jsonl.zst
  netsync import --db ./journal.db -   # read from stdin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open export", err)
		}
		defer f.Close()
		in = f
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	sess, err := st.Import(ctx, in)
	if err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return formatter.Success(sess)
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported session %s (client %d)\n", sess.ID, sess.ClientID)
	return nil
}
