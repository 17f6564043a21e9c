package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions are the persistent flags every subcommand sees.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats are the values --format accepts.
var ValidFormats = []string{"text", "json"}

// Command groups shown in help.
const (
	groupClient  = "client"
	groupSchema  = "schema"
	groupJournal = "journal"
)

// NewRootCommand builds the netsync command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:   "netsync",
		Short: "Replicated object client",
		Long: `netsync replicates server-owned objects into a local registry, checks
ownership before local writes and predicts owned movement between server
updates. The journal subcommands inspect what a session recorded.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	root.AddGroup(
		&cobra.Group{ID: groupClient, Title: "Client:"},
		&cobra.Group{ID: groupSchema, Title: "Schemas and values:"},
		&cobra.Group{ID: groupJournal, Title: "Journal:"},
	)

	add := func(group string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = group
			root.AddCommand(c)
		}
	}
	add(groupClient, NewRunCommand(opts), NewTestCommand(opts))
	add(groupSchema, NewValidateCommand(opts), NewEncodeCommand(opts), NewSchemaCommand(opts))
	add(groupJournal, NewReplayCommand(opts), NewTraceCommand(opts), NewExportCommand(opts), NewImportCommand(opts))

	return root
}
