package main

import (
	"fmt"

	"github.com/sleroq/nsx-to-markdown/internal/infra/pandoc"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of nsx-to-markdown and pandoc",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "nsx-to-markdown %s\n", version)
		v, err := pandoc.Pandoc{Executable: cfg.PandocPath}.Version(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "pandoc: %v\n", err)
			return nil
		}
		fmt.Fprintln(out, v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
