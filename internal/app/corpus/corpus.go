// Package corpus reconstructs the notebook, note and attachment graph from
// the identifier based records of a Note Station archive.
package corpus

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
)

var ErrPathAlreadySet = errors.New("note path already assigned")

var attachmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sleroq/nsx-to-markdown/attachment"))

type Notebook struct {
	ID    string
	Title string
	// FolderName is assigned by the planner.
	FolderName string
	Pages      []*NotePage
	titles     map[string]struct{}
}

func newNotebook(id, title string) *Notebook {
	return &Notebook{ID: id, Title: title, titles: map[string]struct{}{}}
}

func (nb *Notebook) HasTitle(title string) bool {
	_, ok := nb.titles[title]
	return ok
}

type NotePage struct {
	ID            string
	Title         string
	OriginalTitle string
	NotebookID    string
	LinkID        string
	Content       string
	Tags          []string
	Record        notestation.NoteRecord
	Attachments   []*Attachment
	path          string
}

// Path returns the planned output path relative to the export root.
func (p *NotePage) Path() string { return p.path }

// SetPath assigns the output path. It can only be done once.
func (p *NotePage) SetPath(path string) error {
	if p.path != "" {
		return ErrPathAlreadySet
	}
	p.path = path
	return nil
}

type Attachment struct {
	ID     string
	NoteID string
	Name   string
	Ref    string
	MIME   string
	Member string
	// Path and Copy are assigned by the planner.
	Path    string
	Copy    bool
	payload func() ([]byte, error)
}

// Payload fetches the attachment bytes from the archive.
func (a *Attachment) Payload() ([]byte, error) {
	if a.payload == nil {
		return nil, nil
	}
	return a.payload()
}

func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MIME), "image/")
}

func AttachmentID(noteID, name string) string {
	return uuid.NewSHA1(attachmentNamespace, []byte(noteID+"/"+name)).String()
}

type Corpus struct {
	Notebooks     map[string]*Notebook
	NotebookOrder []string
	Pages         map[string]*NotePage
	PageOrder     []string
	// Encrypted holds the titles of notes left out of the graph.
	Encrypted []string
	Warnings  []string
}

func (c *Corpus) OrderedNotebooks() []*Notebook {
	out := make([]*Notebook, 0, len(c.NotebookOrder))
	for _, id := range c.NotebookOrder {
		out = append(out, c.Notebooks[id])
	}
	return out
}

func (c *Corpus) OrderedPages() []*NotePage {
	out := make([]*NotePage, 0, len(c.PageOrder))
	for _, id := range c.PageOrder {
		if p, ok := c.Pages[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// RemovePage drops a page from the corpus and its notebook.
func (c *Corpus) RemovePage(id string) {
	p, ok := c.Pages[id]
	if !ok {
		return
	}
	delete(c.Pages, id)
	if nb, ok := c.Notebooks[p.NotebookID]; ok {
		kept := nb.Pages[:0]
		for _, other := range nb.Pages {
			if other.ID != id {
				kept = append(kept, other)
			}
		}
		nb.Pages = kept
		delete(nb.titles, p.Title)
	}
}

func (c *Corpus) Attachments() []*Attachment {
	var out []*Attachment
	for _, p := range c.OrderedPages() {
		out = append(out, p.Attachments...)
	}
	return out
}
