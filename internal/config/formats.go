package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sleroq/nsx-to-markdown/internal/app/contentlinks"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathname"
)

const (
	FormatGFM                  = "gfm"
	FormatObsidian             = "obsidian"
	FormatCommonMark           = "commonmark"
	FormatPandocMarkdown       = "pandoc_markdown"
	FormatPandocMarkdownStrict = "pandoc_markdown_strict"
	FormatMultiMarkdown        = "multimarkdown"
	FormatQOwnNotes            = "q_own_notes"
	FormatHTML                 = "html"
)

var ErrUnknownExportFormat = errors.New("unknown export format")

// ExportFormat bundles everything a quick setting decides about the output.
type ExportFormat struct {
	Name      string
	PandocTo  string
	Extension string
	Content   contentlinks.Format
	FileName  pathname.Options
	// ObsidianImages turns sized HTML images into ![alt|width](src) embeds.
	ObsidianImages bool
}

func markdownNames(allowSpaces bool) pathname.Options {
	opts := pathname.DefaultOptions()
	opts.AllowSpaces = allowSpaces
	return opts
}

var exportFormats = map[string]ExportFormat{
	FormatGFM:                  {PandocTo: "gfm", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(false)},
	FormatObsidian:             {PandocTo: "gfm", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(true), ObsidianImages: true},
	FormatCommonMark:           {PandocTo: "commonmark", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(false)},
	FormatPandocMarkdown:       {PandocTo: "markdown", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(false)},
	FormatPandocMarkdownStrict: {PandocTo: "markdown_strict", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(false)},
	FormatMultiMarkdown:        {PandocTo: "markdown_mmd", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(false)},
	FormatQOwnNotes:            {PandocTo: "commonmark", Extension: ".md", Content: contentlinks.Markdown, FileName: markdownNames(true)},
	FormatHTML:                 {PandocTo: "html", Extension: ".html", Content: contentlinks.HTML, FileName: markdownNames(false)},
}

func LookupFormat(name string) (ExportFormat, error) {
	f, ok := exportFormats[name]
	if !ok {
		return ExportFormat{}, fmt.Errorf("%w %q: expected one of %v", ErrUnknownExportFormat, name, FormatNames())
	}
	f.Name = name
	return f, nil
}

func FormatNames() []string {
	out := make([]string, 0, len(exportFormats))
	for name := range exportFormats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ExportFormat returns the quick setting selected by c with its file name
// length limit applied.
func (c Config) ExportFormat() ExportFormat {
	f, err := LookupFormat(c.Format)
	if err != nil {
		f, _ = LookupFormat(FormatGFM)
	}
	if c.MaxFileNameLength > 0 {
		f.FileName.MaxLength = c.MaxFileNameLength
	}
	return f
}
