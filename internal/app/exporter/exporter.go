// Package exporter runs the conversions: a Note Station archive or a tree
// of Markdown/HTML files in, a tree of converted notes with working links out.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sleroq/nsx-to-markdown/internal/app/contentlinks"
	"github.com/sleroq/nsx-to-markdown/internal/app/corpus"
	"github.com/sleroq/nsx-to-markdown/internal/app/notelinks"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/app/planner"
	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
	"github.com/sleroq/nsx-to-markdown/internal/infra/exportfs"
	"github.com/sleroq/nsx-to-markdown/internal/infra/manifest"
	"github.com/sleroq/nsx-to-markdown/internal/infra/nsxarchive"
	"github.com/sleroq/nsx-to-markdown/internal/infra/pandoc"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
)

// sourceFormat is the pandoc reader for note content inside an archive.
const sourceFormat = "html"

type Exporter struct {
	Archive          string
	OutputDir        string
	Format           config.ExportFormat
	Converter        pandoc.Converter
	Syntax           pathsyntax.Syntax
	AbsoluteLinks    bool
	AttachmentFolder string
	FrontMatter      bool
	RawRecords       bool
	IgnoreLinks      []string
	RunID            string
}

type Stats struct {
	Notebooks   int
	Notes       int
	Encrypted   int
	Skipped     int
	Attachments int
	// Relocated counts links rewritten to reach files that stay in place.
	Relocated int
	// LeftInPlace counts absolute links to files outside the export.
	LeftInPlace  int
	MissingLinks int
	DeadLinks    int
	InvalidLinks int
	Warnings     []string
	// NotePaths maps note ids to output paths relative to the output dir.
	NotePaths map[string]string
	// Rewrites holds, per note id, every link target replaced in it.
	Rewrites map[string]map[string]string
}

func (s *Stats) warn(msg string, fields map[string]interface{}) {
	s.Warnings = append(s.Warnings, msg)
	logger.Warn(msg, fields)
}

func (s *Stats) recordRewrites(id string, mappings ...map[string]string) {
	for _, m := range mappings {
		for old, next := range m {
			if s.Rewrites[id] == nil {
				s.Rewrites[id] = map[string]string{}
			}
			s.Rewrites[id][old] = next
		}
	}
}

type renderedNote struct {
	page    *corpus.NotePage
	content string
}

func (e Exporter) syntax() pathsyntax.Syntax {
	if e.Syntax != nil {
		return e.Syntax
	}
	return pathsyntax.ForOS(runtime.GOOS)
}

func (e Exporter) format() config.ExportFormat {
	if e.Format.PandocTo != "" {
		return e.Format
	}
	f, _ := config.LookupFormat(config.FormatGFM)
	return f
}

func (e Exporter) converter(f config.ExportFormat) pandoc.Converter {
	if e.Converter != nil {
		return e.Converter
	}
	if f.PandocTo == sourceFormat {
		return pandoc.Passthrough{}
	}
	return pandoc.Pandoc{}
}

func (e Exporter) attachmentFolder() string {
	if e.AttachmentFolder != "" {
		return e.AttachmentFolder
	}
	return config.Default().AttachmentFolder
}

// Run converts the archive. Notes that fail are skipped with a warning; any
// other error stops the run and is returned with the stats gathered so far.
func (e Exporter) Run(ctx context.Context) (Stats, error) {
	stats := Stats{NotePaths: map[string]string{}, Rewrites: map[string]map[string]string{}}
	if e.Archive == "" || e.OutputDir == "" {
		return stats, fmt.Errorf("archive and output directory are required")
	}
	syntax := e.syntax()
	format := e.format()
	converter := e.converter(format)
	runID := e.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return stats, fmt.Errorf("create output dir: %w", err)
	}
	root, err := filepath.Abs(e.OutputDir)
	if err != nil {
		return stats, fmt.Errorf("resolve output dir: %w", err)
	}
	root = filepath.ToSlash(root)

	archive, err := nsxarchive.Open(e.Archive)
	if err != nil {
		return stats, err
	}
	defer archive.Close()

	archiveConfig, err := archive.ReadConfig()
	if err != nil {
		return stats, fmt.Errorf("read archive config: %w", err)
	}
	c, err := corpus.Builder{Source: archive}.Build(archiveConfig)
	if err != nil {
		return stats, fmt.Errorf("build note graph: %w", err)
	}
	stats.Encrypted = len(c.Encrypted)
	stats.Skipped += len(c.Warnings)
	stats.Warnings = append(stats.Warnings, c.Warnings...)
	for _, title := range c.Encrypted {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("note %q is encrypted and has not been converted", title))
	}

	if err := nameAttachments(c); err != nil {
		return stats, err
	}

	p := planner.New(syntax, planner.Options{
		FileName:         format.FileName,
		FolderName:       format.FileName,
		Extension:        format.Extension,
		AttachmentFolder: e.attachmentFolder(),
	})
	if _, err := p.Folders.Claim(manifest.DirName); err != nil {
		return stats, err
	}
	plan := p.PlanCorpus(c)
	for _, f := range plan.Failures {
		stats.Skipped++
		stats.Warnings = append(stats.Warnings, f.Error())
	}

	links := notelinks.Process(c.OrderedPages())
	stats.DeadLinks = len(links.Dead())

	planned := map[string]bool{}
	for _, rel := range plan.NotePaths {
		planned[syntax.Join(root, rel)] = true
	}
	for _, rel := range plan.AttachmentPaths {
		planned[syntax.Join(root, rel)] = true
	}
	classifier := contentlinks.Classifier{
		Syntax: syntax,
		Exists: func(p string) bool {
			if planned[p] {
				return true
			}
			_, err := os.Stat(syntax.Native(p))
			return err == nil
		},
		Ignore: e.IgnoreLinks,
	}

	pages := c.OrderedPages()
	progressBar := newProgressLine(len(pages) + len(c.Attachments()) + 1)
	defer progressBar.Close()

	rendered := make([]renderedNote, 0, len(pages))
	var written []*corpus.Attachment
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		payloads, err := loadPayloads(page)
		if err == nil {
			var content string
			content, err = e.renderPage(ctx, page, c, links, classifier, converter, format, root, &stats)
			if err == nil {
				rendered = append(rendered, renderedNote{page: page, content: content})
			}
		}
		progressBar.Step("converting notes")
		if err != nil {
			stats.Skipped++
			stats.warn(fmt.Sprintf("skip note %s (%q): %v", page.ID, page.Title, err), map[string]interface{}{"note": page.ID})
			continue
		}

		for i, a := range page.Attachments {
			if a.Path == "" {
				continue
			}
			if err := exportfs.Store(filepath.FromSlash(path.Join(root, a.Path)), payloads[i]); err != nil {
				return stats, fmt.Errorf("write attachment %q of note %s: %w", a.Name, page.ID, err)
			}
			written = append(written, a)
			stats.Attachments++
			progressBar.Step("writing attachments")
		}
	}

	notebooks := map[string]bool{}
	var manifestNotes []manifest.Note
	for _, note := range rendered {
		page := note.page
		abs := filepath.FromSlash(syntax.Join(root, page.Path()))
		if err := exportfs.Store(abs, []byte(note.content)); err != nil {
			return stats, fmt.Errorf("write note %s: %w", page.ID, err)
		}
		created, modified, _ := notestation.NoteTimestamps(page.Record)
		if err := exportfs.ApplyFileTimes(abs, created, modified); err != nil {
			return stats, fmt.Errorf("apply note timestamps %s: %w", page.ID, err)
		}
		if e.RawRecords {
			rec := page.Record
			rec.Content = ""
			if err := manifest.WriteRaw(e.OutputDir, page.ID, map[string]any{"id": page.ID, "record": rec}); err != nil {
				return stats, fmt.Errorf("write raw record %s: %w", page.ID, err)
			}
		}
		stats.Notes++
		stats.NotePaths[page.ID] = page.Path()
		notebooks[page.NotebookID] = true

		nb := c.Notebooks[page.NotebookID]
		manifestNotes = append(manifestNotes, manifest.Note{
			ID:       page.ID,
			Title:    page.Title,
			Notebook: nb.Title,
			Path:     page.Path(),
			Tags:     page.Tags,
			Created:  created,
			Modified: modified,
		})
	}
	stats.Notebooks = len(notebooks)

	m := manifest.Manifest{
		RunID:     runID,
		Source:    e.Archive,
		Format:    format.Name,
		CreatedAt: time.Now(),
		Notes:     manifestNotes,
		Rewrites:  flattenRewrites(stats.Rewrites),
	}
	for _, a := range written {
		m.Attachments = append(m.Attachments, manifest.Attachment{ID: a.ID, NoteID: a.NoteID, Name: a.Name, Path: a.Path, MIME: a.MIME})
	}
	for _, edge := range links.Edges() {
		if _, ok := stats.NotePaths[edge.SourceID]; !ok {
			continue
		}
		m.Links = append(m.Links, manifest.Link{SourceID: edge.SourceID, TargetID: edge.TargetID, Raw: edge.Raw, Pass: edge.Pass.String()})
	}
	for _, ref := range links.Dead() {
		m.DeadLinks = append(m.DeadLinks, manifest.Link{SourceID: ref.SourceID, Raw: ref.Raw, Pass: ref.Pass.String()})
	}
	if err := manifest.Write(e.OutputDir, m); err != nil {
		return stats, err
	}
	progressBar.Step("writing manifest")
	progressBar.Done("done")

	logger.Info("archive converted", map[string]interface{}{
		"run":         runID,
		"notes":       stats.Notes,
		"attachments": stats.Attachments,
		"skipped":     stats.Skipped,
	})
	return stats, nil
}

// renderPage produces the final text of one note.
func (e Exporter) renderPage(ctx context.Context, page *corpus.NotePage, c *corpus.Corpus, links *notelinks.Index, classifier contentlinks.Classifier, converter pandoc.Converter, format config.ExportFormat, root string, stats *Stats) (string, error) {
	syntax := classifier.Syntax

	noteLinks := links.RewritesFor(page, syntax)
	content := contentlinks.Rewrite(contentlinks.HTML, page.Content, noteLinks)

	targets := attachmentTargets(page, syntax)
	content, embedded := inlineImages(content, page, targets)
	content = appendAttachmentList(content, page, targets, embedded)

	converted, err := converter.Convert(ctx, content, sourceFormat, format.PandocTo)
	if err != nil {
		return "", err
	}
	if format.ObsidianImages {
		converted = obsidianImageLinks(converted)
	}

	notePath := syntax.Join(root, page.Path())
	cls := classifier.Classify(format.Content, converted, notePath, root)
	missing := cls.Missing()
	stats.MissingLinks += missing.Len()
	stats.InvalidLinks += cls.Invalid.Len()
	stats.LeftInPlace += cls.NonCopyableAbsolute.Len() + cls.NonCopyableRelative.Len()
	for _, l := range missing.Links() {
		logger.Debug("link target not found", map[string]interface{}{"note": page.ID, "target": l.Raw})
	}

	suffixes := map[string]string{}
	if format.Extension != ".html" {
		contentLinks := missing.Filter(func(l contentlinks.Link) bool { return contentlinks.IsContentFile(l.Path) })
		suffixes = contentlinks.SuffixRewrites(contentLinks, ".html", format.Extension)
	}
	converted = contentlinks.Rewrite(format.Content, converted, suffixes)
	stats.recordRewrites(page.ID, noteLinks, suffixes)

	if format.Content == contentlinks.HTML {
		return htmlDocument(page.Title, converted), nil
	}
	if !e.FrontMatter {
		return ensureTrailingNewline(converted), nil
	}
	notebook := ""
	if nb, ok := c.Notebooks[page.NotebookID]; ok {
		notebook = nb.Title
	}
	fm, err := renderFrontMatter(pageFrontMatter(page, notebook, format.Name == config.FormatObsidian))
	if err != nil {
		return "", err
	}
	return fm + ensureTrailingNewline(converted), nil
}

// loadPayloads reads every attachment of page from the archive. A note whose
// attachments cannot all be read is not exported.
func loadPayloads(page *corpus.NotePage) ([][]byte, error) {
	out := make([][]byte, len(page.Attachments))
	for i, a := range page.Attachments {
		if a.Path == "" {
			continue
		}
		data, err := a.Payload()
		if err != nil {
			return nil, fmt.Errorf("read attachment %q: %w", a.Name, err)
		}
		out[i] = data
	}
	return out, nil
}

// nameAttachments gives attachments without an extension one derived from
// their MIME type or, failing that, from their content.
func nameAttachments(c *corpus.Corpus) error {
	for _, a := range c.Attachments() {
		if path.Ext(a.Name) != "" {
			continue
		}
		ext := exportfs.ExtensionForMIME(a.MIME)
		if ext == "" {
			data, err := a.Payload()
			if err != nil {
				if errors.Is(err, notestation.ErrRecordNotFound) {
					continue
				}
				return fmt.Errorf("read attachment %s: %w", a.Name, err)
			}
			ext = exportfs.DetectFileExtension(data)
		}
		a.Name += ext
	}
	return nil
}

func flattenRewrites(rewrites map[string]map[string]string) []manifest.Rewrite {
	var out []manifest.Rewrite
	for id, m := range rewrites {
		for old, next := range m {
			out = append(out, manifest.Rewrite{NoteID: id, Old: old, New: next})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NoteID != out[j].NoteID {
			return out[i].NoteID < out[j].NoteID
		}
		return out[i].Old < out[j].Old
	})
	return out
}
