package exporter

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/sleroq/nsx-to-markdown/internal/app/contentlinks"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathname"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/app/planner"
	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/sleroq/nsx-to-markdown/internal/infra/exportfs"
	"github.com/sleroq/nsx-to-markdown/internal/infra/manifest"
	"github.com/sleroq/nsx-to-markdown/internal/infra/pandoc"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
)

// contentGlob selects the documents a tree conversion picks up.
const contentGlob = "**/*.{md,markdown,html,htm}"

// TreeConverter converts a directory of Markdown and HTML documents into
// another directory. Attachments under the source directory are copied
// along, links to files outside it are corrected for the new location.
type TreeConverter struct {
	SourceDir     string
	OutputDir     string
	Format        config.ExportFormat
	Converter     pandoc.Converter
	Syntax        pathsyntax.Syntax
	AbsoluteLinks bool
	IgnoreLinks   []string
	RunID         string
}

type treeDocument struct {
	rel     string
	planned string
	from    contentlinks.Format
}

func (t TreeConverter) Run(ctx context.Context) (Stats, error) {
	stats := Stats{NotePaths: map[string]string{}, Rewrites: map[string]map[string]string{}}
	if t.SourceDir == "" || t.OutputDir == "" {
		return stats, fmt.Errorf("source and output directories are required")
	}
	syntax := t.Syntax
	if syntax == nil {
		syntax = pathsyntax.ForOS(runtime.GOOS)
	}
	format := Exporter{Format: t.Format}.format()
	converter := t.Converter
	if converter == nil {
		converter = pandoc.Pandoc{}
	}
	runID := t.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	srcRoot, err := absSlash(t.SourceDir)
	if err != nil {
		return stats, err
	}
	outRoot, err := absSlash(t.OutputDir)
	if err != nil {
		return stats, err
	}
	if info, err := os.Stat(syntax.Native(srcRoot)); err != nil || !info.IsDir() {
		return stats, fmt.Errorf("source %s is not a directory", t.SourceDir)
	}
	if syntax.CollisionKey(syntax.Clean(srcRoot)) == syntax.CollisionKey(syntax.Clean(outRoot)) {
		return stats, fmt.Errorf("output directory must differ from the source directory")
	}

	docs, err := t.discover(syntax, srcRoot, outRoot, format)
	if err != nil {
		return stats, err
	}
	planned := map[string]string{}
	for _, d := range docs {
		planned[d.rel] = d.planned
	}

	classifier := contentlinks.Classifier{Syntax: syntax, Ignore: t.IgnoreLinks}
	relocator := contentlinks.Relocator{Syntax: syntax, Absolute: t.AbsoluteLinks}
	copied := map[string]string{}

	progressBar := newProgressLine(len(docs) + 1)
	defer progressBar.Close()

	var manifestNotes []manifest.Note
	var manifestAttachments []manifest.Attachment
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		srcPath := syntax.Join(srcRoot, d.rel)
		dstPath := syntax.Join(outRoot, d.planned)
		info, err := os.Stat(syntax.Native(srcPath))
		if err != nil {
			return stats, fmt.Errorf("stat %s: %w", d.rel, err)
		}
		raw, err := os.ReadFile(syntax.Native(srcPath))
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", d.rel, err)
		}
		content := string(raw)

		cls := classifier.Classify(d.from, content, srcPath, srcRoot)
		missing := cls.Missing()
		stats.MissingLinks += missing.Len()
		stats.InvalidLinks += cls.Invalid.Len()
		stats.LeftInPlace += cls.NonCopyableAbsolute.Len()

		mapping := map[string]string{}
		for _, l := range cls.Copyable.Links() {
			target := classifier.Resolve(srcPath, l)
			targetRel, err := syntax.Rel(srcRoot, target)
			if err != nil {
				continue
			}
			dest := syntax.Join(outRoot, targetRel)
			if contentlinks.IsContentFile(l.Path) {
				p, ok := planned[targetRel]
				if !ok {
					continue
				}
				dest = syntax.Join(outRoot, p)
			} else if _, done := copied[dest]; !done {
				if err := exportfs.CopyFile(syntax.Native(target), syntax.Native(dest)); err != nil {
					stats.warn(fmt.Sprintf("copy %s: %v", targetRel, err), map[string]interface{}{"note": d.rel})
					continue
				}
				copied[dest] = d.rel
				stats.Attachments++
				manifestAttachments = append(manifestAttachments, manifest.Attachment{
					ID:     targetRel,
					NoteID: d.rel,
					Name:   path.Base(targetRel),
					Path:   targetRel,
				})
			}
			if next := retarget(syntax, l, dstPath, dest); next != "" {
				mapping[l.Raw] = next
			}
		}

		if format.Extension != ".html" {
			stale := missing.Filter(func(l contentlinks.Link) bool { return contentlinks.IsContentFile(l.Path) })
			for old, next := range contentlinks.SuffixRewrites(stale, ".html", format.Extension) {
				mapping[old] = next
			}
		}

		relocated := relocator.Plan(cls.NonCopyableRelative, srcPath, dstPath)
		stats.Relocated += len(relocated)
		stats.LeftInPlace += cls.NonCopyableRelative.Len() - len(relocated)
		for old, next := range relocated {
			mapping[old] = next
		}

		content = contentlinks.Rewrite(d.from, content, mapping)
		converted, err := converter.Convert(ctx, content, d.from.String(), format.PandocTo)
		if err != nil {
			stats.Skipped++
			stats.warn(fmt.Sprintf("skip %s: %v", d.rel, err), map[string]interface{}{"note": d.rel})
			progressBar.Step("converting files")
			continue
		}
		if format.ObsidianImages {
			converted = obsidianImageLinks(converted)
		}
		title := strings.TrimSuffix(path.Base(d.rel), path.Ext(d.rel))
		if format.Content == contentlinks.HTML && d.from != contentlinks.HTML {
			converted = htmlDocument(title, converted)
		} else {
			converted = ensureTrailingNewline(converted)
		}

		if err := exportfs.Store(syntax.Native(dstPath), []byte(converted)); err != nil {
			return stats, fmt.Errorf("write %s: %w", d.planned, err)
		}
		if err := exportfs.ApplyFileTimes(syntax.Native(dstPath), info.ModTime(), info.ModTime()); err != nil {
			return stats, fmt.Errorf("apply timestamps %s: %w", d.planned, err)
		}

		stats.Notes++
		stats.NotePaths[d.rel] = d.planned
		stats.recordRewrites(d.rel, mapping)
		manifestNotes = append(manifestNotes, manifest.Note{
			ID:       d.rel,
			Title:    title,
			Path:     d.planned,
			Modified: info.ModTime(),
		})
		progressBar.Step("converting files")
	}

	m := manifest.Manifest{
		RunID:       runID,
		Source:      t.SourceDir,
		Format:      format.Name,
		CreatedAt:   time.Now(),
		Notes:       manifestNotes,
		Attachments: manifestAttachments,
		Rewrites:    flattenRewrites(stats.Rewrites),
	}
	if err := manifest.Write(t.OutputDir, m); err != nil {
		return stats, err
	}
	progressBar.Step("writing manifest")
	progressBar.Done("done")

	logger.Info("tree converted", map[string]interface{}{
		"run":         runID,
		"files":       stats.Notes,
		"attachments": stats.Attachments,
		"relocated":   stats.Relocated,
	})
	return stats, nil
}

// discover lists the documents under srcRoot in lexical order and plans
// their output paths. The output directory and metadata folders are skipped.
func (t TreeConverter) discover(syntax pathsyntax.Syntax, srcRoot, outRoot string, format config.ExportFormat) ([]treeDocument, error) {
	matches, err := doublestar.Glob(os.DirFS(syntax.Native(srcRoot)), contentGlob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.SourceDir, err)
	}
	sort.Strings(matches)

	files := planner.NewFileNames(syntax, planner.DefaultMaxAttempts)
	dirOpts := format.FileName
	var docs []treeDocument
	for _, rel := range matches {
		abs := syntax.Join(srcRoot, rel)
		if syntax.Within(outRoot, abs) || strings.HasPrefix(rel, manifest.DirName+"/") {
			continue
		}
		from, err := contentlinks.ParseFormat(strings.TrimPrefix(path.Ext(rel), "."))
		if err != nil {
			continue
		}
		stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
		candidate := pathname.CleanFileName(stem+format.Extension, format.FileName)
		if dir := path.Dir(rel); dir != "." {
			candidate = syntax.Join(pathname.CleanDirectoryPath(dir, dirOpts), candidate)
		}
		name, err := files.Claim(candidate)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", rel, err)
		}
		docs = append(docs, treeDocument{rel: rel, planned: name, from: from})
	}
	return docs, nil
}

// retarget returns the link target that reaches dest from the document at
// docPath, or "" when the raw target already does.
func retarget(syntax pathsyntax.Syntax, l contentlinks.Link, docPath, dest string) string {
	rel, err := syntax.Rel(syntax.Dir(docPath), dest)
	if err != nil || rel == l.Path {
		return ""
	}
	next := rel
	if strings.Contains(l.Raw, "%") || strings.ContainsAny(rel, " #?%") {
		next = contentlinks.EscapePath(rel)
	}
	if idx := strings.IndexAny(l.Raw, "#?"); idx >= 0 {
		next += l.Raw[idx:]
	}
	if next == l.Raw {
		return ""
	}
	return next
}

func absSlash(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return filepath.ToSlash(abs), nil
}
