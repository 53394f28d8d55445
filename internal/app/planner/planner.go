// Package planner assigns every note and attachment of a corpus its final
// output path before any content is rewritten.
package planner

import (
	"fmt"

	"github.com/sleroq/nsx-to-markdown/internal/app/corpus"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathname"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
)

type Options struct {
	FileName         pathname.Options
	FolderName       pathname.Options
	Extension        string
	AttachmentFolder string
}

type Failure struct {
	NoteID string
	Title  string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("plan note %s (%q): %v", f.NoteID, f.Title, f.Err)
}

type Plan struct {
	NotePaths       map[string]string
	AttachmentPaths map[string]string
	Failures        []Failure
}

type Planner struct {
	Syntax  pathsyntax.Syntax
	Files   *UsedNames
	Folders *UsedNames
	Options Options
}

func New(syntax pathsyntax.Syntax, opts Options) *Planner {
	return &Planner{
		Syntax:  syntax,
		Files:   NewFileNames(syntax, DefaultMaxAttempts),
		Folders: NewFolderNames(syntax, DefaultMaxAttempts),
		Options: opts,
	}
}

// PlanCorpus names every notebook folder, then every note and attachment in
// processing order. Notes that cannot be given a free name are removed from
// the corpus and reported as failures.
func (p *Planner) PlanCorpus(c *corpus.Corpus) Plan {
	plan := Plan{
		NotePaths:       make(map[string]string, len(c.Pages)),
		AttachmentPaths: map[string]string{},
	}

	for _, nb := range c.OrderedNotebooks() {
		folder, err := p.Folders.Claim(pathname.CleanDirectoryName(nb.Title, p.Options.FolderName))
		if err != nil {
			for _, page := range append([]*corpus.NotePage(nil), nb.Pages...) {
				plan.fail(c, page, err)
			}
			continue
		}
		nb.FolderName = folder
	}

	for _, page := range c.OrderedPages() {
		nb := c.Notebooks[page.NotebookID]
		if nb == nil || nb.FolderName == "" {
			continue
		}
		if err := p.planPage(nb, page, plan); err != nil {
			plan.fail(c, page, err)
		}
	}
	return plan
}

func (p *Planner) planPage(nb *corpus.Notebook, page *corpus.NotePage, plan Plan) error {
	name, err := p.Files.Claim(pathname.CleanFileName(page.Title+p.Options.Extension, p.Options.FileName))
	if err != nil {
		return err
	}
	for _, a := range page.Attachments {
		attName, err := p.Files.Claim(pathname.CleanFileName(a.Name, p.Options.FileName))
		if err != nil {
			return fmt.Errorf("attachment %s: %w", a.Name, err)
		}
		a.Path = p.Syntax.Join(nb.FolderName, p.Options.AttachmentFolder, attName)
		a.Copy = true
	}

	notePath := p.Syntax.Join(nb.FolderName, name)
	if err := page.SetPath(notePath); err != nil {
		return err
	}
	plan.NotePaths[page.ID] = notePath
	for _, a := range page.Attachments {
		plan.AttachmentPaths[a.ID] = a.Path
	}
	logger.Debug("planned note path", map[string]interface{}{"note": page.ID, "path": notePath})
	return nil
}

func (plan *Plan) fail(c *corpus.Corpus, page *corpus.NotePage, err error) {
	f := Failure{NoteID: page.ID, Title: page.Title, Err: err}
	plan.Failures = append(plan.Failures, f)
	for _, a := range page.Attachments {
		delete(plan.AttachmentPaths, a.ID)
	}
	delete(plan.NotePaths, page.ID)
	c.RemovePage(page.ID)
	logger.Warn(f.Error())
}
