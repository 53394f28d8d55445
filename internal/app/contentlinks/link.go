// Package contentlinks finds the file references embedded in rendered note
// content, classifies them against the file system, and rewrites their
// targets without touching any other byte of the content.
package contentlinks

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Format int

const (
	HTML Format = iota
	Markdown
)

var ErrUnknownFormat = errors.New("unknown content format")

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html", "htm":
		return HTML, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) String() string {
	if f == Markdown {
		return "markdown"
	}
	return "html"
}

// Kind tags the syntax a link was found in.
type Kind int

const (
	NoteLink Kind = iota
	MarkdownImage
	MarkdownLink
	HTMLHref
	HTMLSrc
)

func (k Kind) String() string {
	switch k {
	case NoteLink:
		return "note-link"
	case MarkdownImage:
		return "markdown-image"
	case MarkdownLink:
		return "markdown-link"
	case HTMLHref:
		return "html-href"
	case HTMLSrc:
		return "html-src"
	}
	return "unknown"
}

type Link struct {
	// Raw is the target exactly as written in the content.
	Raw string
	// Path is the decoded file system form of Raw.
	Path string
	Kind Kind
}

// LinkSet is an immutable set of links keyed by their raw target.
type LinkSet struct {
	links []Link
	byRaw map[string]int
}

func NewLinkSet(links ...Link) LinkSet {
	s := LinkSet{byRaw: make(map[string]int, len(links))}
	for _, l := range links {
		if _, ok := s.byRaw[l.Raw]; ok {
			continue
		}
		s.byRaw[l.Raw] = len(s.links)
		s.links = append(s.links, l)
	}
	sort.Slice(s.links, func(i, j int) bool { return s.links[i].Raw < s.links[j].Raw })
	for i, l := range s.links {
		s.byRaw[l.Raw] = i
	}
	return s
}

func (s LinkSet) Len() int { return len(s.links) }

func (s LinkSet) Has(raw string) bool {
	_, ok := s.byRaw[raw]
	return ok
}

func (s LinkSet) Get(raw string) (Link, bool) {
	i, ok := s.byRaw[raw]
	if !ok {
		return Link{}, false
	}
	return s.links[i], true
}

// Links returns the members ordered by raw target.
func (s LinkSet) Links() []Link {
	return append([]Link(nil), s.links...)
}

func (s LinkSet) Raws() []string {
	out := make([]string, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l.Raw)
	}
	return out
}

// Paths returns the distinct decoded paths, sorted.
func (s LinkSet) Paths() []string {
	seen := make(map[string]struct{}, len(s.links))
	out := make([]string, 0, len(s.links))
	for _, l := range s.links {
		if _, ok := seen[l.Path]; ok {
			continue
		}
		seen[l.Path] = struct{}{}
		out = append(out, l.Path)
	}
	sort.Strings(out)
	return out
}

func (s LinkSet) Filter(keep func(Link) bool) LinkSet {
	var out []Link
	for _, l := range s.links {
		if keep(l) {
			out = append(out, l)
		}
	}
	return NewLinkSet(out...)
}

func (s LinkSet) Union(other LinkSet) LinkSet {
	return NewLinkSet(append(s.Links(), other.links...)...)
}
