package main

import (
	"fmt"

	"github.com/sleroq/nsx-to-markdown/internal/app/exporter"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/sleroq/nsx-to-markdown/internal/infra/pandoc"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <archive.nsx>...",
	Short: "Convert one or more Note Station archives",
	Long: `Convert reads each archive, which may be an .nsx file or its unpacked
directory, and writes its notebooks under the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	def := config.Default()
	flags := convertCmd.Flags()
	flags.StringP("format", "f", def.Format, fmt.Sprintf("export format %v", config.FormatNames()))
	flags.Bool("absolute-links", def.AbsoluteLinks, "rewrite links to files outside the export as absolute paths")
	flags.String("attachment-folder", def.AttachmentFolder, "folder inside each notebook that receives attachments")
	flags.String("pandoc", def.PandocPath, "pandoc executable")
	flags.Bool("front-matter", def.FrontMatter, "prepend YAML front matter to Markdown notes")
	flags.Bool("raw-records", def.RawRecords, "keep a JSON sidecar of each note record")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	syntax, err := pathsyntax.Resolve(cfg.PathSyntax)
	if err != nil {
		return err
	}
	format := cfg.ExportFormat()

	failed := false
	for _, archive := range args {
		exp := exporter.Exporter{
			Archive:          archive,
			OutputDir:        cfg.Output,
			Format:           format,
			Converter:        converterFor(format),
			Syntax:           syntax,
			AbsoluteLinks:    cfg.AbsoluteLinks,
			AttachmentFolder: cfg.AttachmentFolder,
			FrontMatter:      cfg.FrontMatter,
			RawRecords:       cfg.RawRecords,
			IgnoreLinks:      cfg.IgnoreLinks,
		}
		logger.Info("converting archive", map[string]interface{}{"archive": archive, "output": cfg.Output})
		stats, err := exp.Run(cmd.Context())
		printSummary(cmd.OutOrStdout(), archive, stats)
		if err != nil {
			logger.Error("conversion failed", err, map[string]interface{}{"archive": archive})
			failed = true
			continue
		}
		if stats.Skipped > 0 {
			failed = true
		}
	}
	if failed {
		return errIncomplete
	}
	return nil
}

func converterFor(format config.ExportFormat) pandoc.Converter {
	if format.Name == config.FormatHTML {
		return pandoc.Passthrough{}
	}
	return pandoc.Pandoc{Executable: cfg.PandocPath}
}
