// Package notelinks resolves note-to-note references written in note
// content into the planned output paths of their targets.
package notelinks

import (
	"github.com/sleroq/nsx-to-markdown/internal/app/contentlinks"
	"github.com/sleroq/nsx-to-markdown/internal/app/corpus"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
	"github.com/sleroq/nsx-to-markdown/internal/logger"
)

type Pass int

const (
	Unresolved Pass = iota
	ByTitle
	ByRefID
)

func (p Pass) String() string {
	switch p {
	case ByTitle:
		return "title"
	case ByRefID:
		return "ref_id"
	}
	return "unresolved"
}

// Reference is one note-link anchor found in a source note.
type Reference struct {
	SourceID string
	// Raw is the href exactly as authored.
	Raw   string
	Text  string
	RefID string
	// TargetID and Pass are set once the reference is resolved.
	TargetID string
	Pass     Pass
}

func (r Reference) Resolved() bool { return r.TargetID != "" }

type Edge struct {
	SourceID string
	TargetID string
	Raw      string
	Pass     Pass
}

// Index holds every reference of a corpus together with the pages they can
// resolve to.
type Index struct {
	refs  []*Reference
	pages map[string]*corpus.NotePage
}

// Collect scans the HTML content of every page for note-link anchors.
func Collect(pages []*corpus.NotePage) *Index {
	ix := &Index{pages: make(map[string]*corpus.NotePage, len(pages))}
	for _, page := range pages {
		ix.pages[page.ID] = page
		for _, a := range contentlinks.NoteAnchors(page.Content) {
			ix.refs = append(ix.refs, &Reference{
				SourceID: page.ID,
				Raw:      a.Href,
				Text:     a.Text,
				RefID:    notestation.NoteLinkRefID(a.Href),
			})
		}
	}
	return ix
}

// Process collects and resolves the references of pages and logs the ones
// left dead.
func Process(pages []*corpus.NotePage) *Index {
	ix := Collect(pages)
	byTitle := ix.MatchTitles()
	byRefID := ix.MatchRefIDs()
	for _, r := range ix.Dead() {
		logger.Warn("dead note link", map[string]interface{}{
			"note":   r.SourceID,
			"text":   r.Text,
			"ref_id": r.RefID,
		})
	}
	logger.Debug("note links resolved", map[string]interface{}{
		"references": len(ix.refs),
		"by_title":   byTitle,
		"by_ref_id":  byRefID,
	})
	return ix
}

// MatchTitles resolves references whose text equals the current title of
// exactly one page, that is the title after duplicate suffixes were added.
// It returns the number resolved.
func (ix *Index) MatchTitles() int {
	byTitle := map[string][]string{}
	for id, page := range ix.pages {
		byTitle[page.Title] = append(byTitle[page.Title], id)
	}
	return ix.match(ByTitle, func(r *Reference) []string { return byTitle[r.Text] })
}

// MatchRefIDs resolves the references MatchTitles left open using the
// stable link id of the archive records.
func (ix *Index) MatchRefIDs() int {
	byLinkID := map[string][]string{}
	for id, page := range ix.pages {
		if page.LinkID != "" {
			byLinkID[page.LinkID] = append(byLinkID[page.LinkID], id)
		}
	}
	return ix.match(ByRefID, func(r *Reference) []string {
		if r.RefID == "" {
			return nil
		}
		return byLinkID[r.RefID]
	})
}

func (ix *Index) match(pass Pass, candidates func(*Reference) []string) int {
	n := 0
	for _, r := range ix.refs {
		if r.Resolved() {
			continue
		}
		if ids := candidates(r); len(ids) == 1 {
			r.TargetID = ids[0]
			r.Pass = pass
			n++
		}
	}
	return n
}

func (ix *Index) References() []Reference {
	out := make([]Reference, 0, len(ix.refs))
	for _, r := range ix.refs {
		out = append(out, *r)
	}
	return out
}

// From returns the references authored in the given page.
func (ix *Index) From(sourceID string) []Reference {
	var out []Reference
	for _, r := range ix.refs {
		if r.SourceID == sourceID {
			out = append(out, *r)
		}
	}
	return out
}

func (ix *Index) Dead() []Reference {
	var out []Reference
	for _, r := range ix.refs {
		if !r.Resolved() {
			out = append(out, *r)
		}
	}
	return out
}

// Edges lists the resolved references as directed source to target pairs.
func (ix *Index) Edges() []Edge {
	var out []Edge
	for _, r := range ix.refs {
		if r.Resolved() {
			out = append(out, Edge{SourceID: r.SourceID, TargetID: r.TargetID, Raw: r.Raw, Pass: r.Pass})
		}
	}
	return out
}

// RewritesFor maps the raw hrefs of the resolved references in page to the
// target's planned path relative to page. Targets without a planned path are
// left out.
func (ix *Index) RewritesFor(page *corpus.NotePage, syntax pathsyntax.Syntax) map[string]string {
	out := map[string]string{}
	if page.Path() == "" {
		return out
	}
	for _, r := range ix.From(page.ID) {
		if !r.Resolved() {
			continue
		}
		if _, done := out[r.Raw]; done {
			continue
		}
		target, ok := ix.pages[r.TargetID]
		if !ok || target.Path() == "" {
			continue
		}
		rel, err := syntax.Rel(syntax.Dir(page.Path()), target.Path())
		if err != nil {
			continue
		}
		out[r.Raw] = contentlinks.EscapePath(rel)
	}
	return out
}
