// Command lockbxray audits a Bun binary lockfile for supply-chain risk and
// reports findings as a terminal table or JSON, with an exit code suited to
// CI gating.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "lockbxray",
		Short:         "Audit a Bun binary lockfile for supply-chain risk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAuditCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lockbxray:", err)
		os.Exit(exitCodeFatal)
	}
}
