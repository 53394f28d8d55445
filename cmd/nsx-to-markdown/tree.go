package main

import (
	"github.com/sleroq/nsx-to-markdown/internal/app/exporter"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/sleroq/nsx-to-markdown/internal/infra/pandoc"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree <dir>",
	Short: "Convert a directory of Markdown and HTML files",
	Long: `Tree converts every .md, .markdown, .html and .htm file under dir into the
output directory. Files they link to inside dir are copied along; links to
files outside dir are corrected for the new location.`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	def := config.Default()
	flags := treeCmd.Flags()
	flags.StringP("format", "f", def.Format, "export format")
	flags.Bool("absolute-links", def.AbsoluteLinks, "rewrite links to files outside dir as absolute paths")
	flags.String("pandoc", def.PandocPath, "pandoc executable")

	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	syntax, err := pathsyntax.Resolve(cfg.PathSyntax)
	if err != nil {
		return err
	}
	format := cfg.ExportFormat()
	tc := exporter.TreeConverter{
		SourceDir:     args[0],
		OutputDir:     cfg.Output,
		Format:        format,
		Converter:     pandoc.Pandoc{Executable: cfg.PandocPath},
		Syntax:        syntax,
		AbsoluteLinks: cfg.AbsoluteLinks,
		IgnoreLinks:   cfg.IgnoreLinks,
	}
	stats, err := tc.Run(cmd.Context())
	printSummary(cmd.OutOrStdout(), args[0], stats)
	if err != nil {
		return err
	}
	if stats.Skipped > 0 {
		return errIncomplete
	}
	return nil
}
