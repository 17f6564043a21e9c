// Command netsync is the replication client CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/netsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
