package corpus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
)

const DefaultMaxSuffixAttempts = 1000

// Source is the part of the archive the graph builder reads from.
type Source interface {
	ReadRecord(id string, v any) error
	ReadAttachment(name string) ([]byte, error)
}

type Builder struct {
	Source            Source
	MaxSuffixAttempts int
}

// Build reads every notebook and note listed in cfg. A record that cannot be
// read aborts the build.
func (b Builder) Build(cfg notestation.ArchiveConfig) (*Corpus, error) {
	maxAttempts := b.MaxSuffixAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSuffixAttempts
	}

	c := &Corpus{
		Notebooks: make(map[string]*Notebook, len(cfg.Notebooks)+1),
		Pages:     make(map[string]*NotePage, len(cfg.Notes)),
	}

	for _, id := range cfg.Notebooks {
		if _, seen := c.Notebooks[id]; seen {
			continue
		}
		var rec notestation.NotebookRecord
		if err := b.Source.ReadRecord(id, &rec); err != nil {
			return nil, fmt.Errorf("read notebook %s: %w", id, err)
		}
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			title = notestation.DefaultNotebookTitle
		}
		c.Notebooks[id] = newNotebook(id, title)
		c.NotebookOrder = append(c.NotebookOrder, id)
	}
	if _, ok := c.Notebooks[notestation.RecycleBinID]; !ok {
		c.Notebooks[notestation.RecycleBinID] = newNotebook(notestation.RecycleBinID, notestation.RecycleBinTitle)
		c.NotebookOrder = append(c.NotebookOrder, notestation.RecycleBinID)
	}

	for _, id := range cfg.Notes {
		if _, seen := c.Pages[id]; seen {
			continue
		}
		var rec notestation.NoteRecord
		if err := b.Source.ReadRecord(id, &rec); err != nil {
			return nil, fmt.Errorf("read note %s: %w", id, err)
		}
		if rec.Encrypt {
			c.Encrypted = append(c.Encrypted, rec.Title)
			logger.Warn("note is encrypted and has not been converted", map[string]interface{}{"title": rec.Title, "id": id})
			continue
		}

		page := b.newPage(id, rec)
		nb, ok := c.Notebooks[rec.ParentID]
		if !ok {
			nb = c.Notebooks[notestation.RecycleBinID]
		}
		if err := addPage(nb, page, maxAttempts); err != nil {
			msg := fmt.Sprintf("skip note %s (%q): %v", id, rec.Title, err)
			c.Warnings = append(c.Warnings, msg)
			logger.Warn(msg)
			continue
		}
		c.Pages[id] = page
		c.PageOrder = append(c.PageOrder, id)
	}

	return c, nil
}

func (b Builder) newPage(id string, rec notestation.NoteRecord) *NotePage {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = "Untitled"
	}
	page := &NotePage{
		ID:            id,
		Title:         title,
		OriginalTitle: title,
		LinkID:        strings.TrimSpace(rec.LinkID),
		Content:       rec.Content,
		Tags:          rec.Tags,
		Record:        rec,
	}
	for _, a := range rec.SortedAttachments() {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = a.MD5
		}
		member := a.MemberName()
		src := b.Source
		page.Attachments = append(page.Attachments, &Attachment{
			ID:      AttachmentID(id, name),
			NoteID:  id,
			Name:    name,
			Ref:     a.Ref,
			MIME:    a.Type,
			Member:  member,
			payload: func() ([]byte, error) { return src.ReadAttachment(member) },
		})
	}
	return page
}

// addPage inserts page into nb, suffixing its title with -1, -2, ... until
// it is unique among the notebook's titles.
func addPage(nb *Notebook, page *NotePage, maxAttempts int) error {
	base := page.Title
	title := base
	for n := 1; nb.HasTitle(title); n++ {
		if n > maxAttempts {
			return fmt.Errorf("title %q still duplicated after %d attempts", base, maxAttempts)
		}
		title = base + "-" + strconv.Itoa(n)
	}
	page.Title = title
	page.NotebookID = nb.ID
	nb.titles[title] = struct{}{}
	nb.Pages = append(nb.Pages, page)
	return nil
}
