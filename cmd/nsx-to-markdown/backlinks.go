package main

import (
	"fmt"
	"path/filepath"

	"github.com/sleroq/nsx-to-markdown/internal/infra/manifest"
	"github.com/spf13/cobra"
)

var backlinksCmd = &cobra.Command{
	Use:   "backlinks <note-id>",
	Short: "List the notes of a finished export that link to a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := manifest.Dir(cfg.Output)
		idx, err := manifest.ReadIndex(filepath.Join(dir, manifest.IndexFile))
		if err != nil {
			return err
		}
		ids, err := manifest.Backlinks(filepath.Join(dir, manifest.DatabaseFile), args[0])
		if err != nil {
			return fmt.Errorf("read backlinks: %w", err)
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, idx.Notes[id])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backlinksCmd)
}
