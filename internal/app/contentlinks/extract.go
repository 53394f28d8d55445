package contentlinks

import (
	"regexp"
	"strings"

	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// strategies lists the extraction strategies applied to each content format.
var strategies = map[Format][]Kind{
	HTML:     {HTMLHref, HTMLSrc},
	Markdown: {MarkdownImage, MarkdownLink, HTMLHref, HTMLSrc},
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]+:`)

// Extract returns every local file candidate referenced by content. Remote
// links, note links, empty targets and bare fragments are dropped; the
// remaining targets are decoded to path form.
func Extract(format Format, content string, syntax pathsyntax.Syntax) LinkSet {
	var links []Link
	for _, kind := range strategies[format] {
		for _, raw := range RawTargets(format, kind, content) {
			if l, ok := localLink(raw, kind, syntax); ok {
				links = append(links, l)
			}
		}
	}
	return NewLinkSet(links...)
}

// RawTargets runs a single extraction strategy and returns the targets it
// finds, in document order and unfiltered.
func RawTargets(format Format, kind Kind, content string) []string {
	switch kind {
	case NoteLink:
		var out []string
		for _, a := range NoteAnchors(content) {
			out = append(out, a.Href)
		}
		return out
	case MarkdownImage, MarkdownLink:
		if format != Markdown {
			return nil
		}
		return markdownTargets(content, kind)
	case HTMLHref:
		return htmlAttrValues(htmlSource(format, content), "href")
	case HTMLSrc:
		return htmlAttrValues(htmlSource(format, content), "src")
	}
	return nil
}

func IsRemote(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 5 && strings.EqualFold(raw[:5], "file:") {
		return false
	}
	if strings.HasPrefix(raw, "//") {
		return true
	}
	return schemePattern.MatchString(raw)
}

func localLink(raw string, kind Kind, syntax pathsyntax.Syntax) (Link, bool) {
	target := strings.TrimSpace(raw)
	if kind == MarkdownImage || kind == MarkdownLink {
		target = markdownUnescape(target)
	}
	if target == "" || IsRemote(target) {
		return Link{}, false
	}
	if idx := strings.IndexAny(target, "#?"); idx >= 0 {
		target = target[:idx]
	}
	if target == "" {
		return Link{}, false
	}
	p := syntax.FromLink(target)
	if p == "" {
		return Link{}, false
	}
	return Link{Raw: raw, Path: p, Kind: kind}, true
}

// markdownUnescape decodes the backslash escapes and character references
// of a markdown link destination.
func markdownUnescape(dest string) string {
	b := util.UnescapePunctuations([]byte(dest))
	b = util.ResolveNumericReferences(b)
	return string(util.ResolveEntityNames(b))
}

func markdownTargets(content string, kind Kind) []string {
	src := []byte(content)
	doc := markdownParser.Parse(text.NewReader(src))
	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			if kind == MarkdownImage {
				out = append(out, string(node.Destination))
			}
		case *ast.Link:
			if kind == MarkdownLink {
				out = append(out, string(node.Destination))
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

// markdownHTML collects the raw HTML embedded in a markdown document.
func markdownHTML(content string) string {
	var b strings.Builder
	for _, span := range markdownHTMLSpans(content) {
		b.WriteString(content[span[0]:span[1]])
		b.WriteByte('\n')
	}
	return b.String()
}

// markdownHTMLSpans returns the byte ranges of the inline HTML and HTML
// blocks of a markdown document, in document order.
func markdownHTMLSpans(content string) [][2]int {
	src := []byte(content)
	doc := markdownParser.Parse(text.NewReader(src))
	var out [][2]int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.RawHTML:
			if node.Segments.Len() > 0 {
				out = append(out, [2]int{node.Segments.At(0).Start, node.Segments.At(node.Segments.Len() - 1).Stop})
			}
		case *ast.HTMLBlock:
			lines := node.Lines()
			if lines.Len() == 0 {
				return ast.WalkContinue, nil
			}
			span := [2]int{lines.At(0).Start, lines.At(lines.Len() - 1).Stop}
			if node.HasClosure() {
				span[1] = node.ClosureLine.Stop
			}
			out = append(out, span)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func htmlSource(format Format, content string) string {
	if format == Markdown {
		return markdownHTML(content)
	}
	return content
}

func htmlAttrValues(content, attr string) []string {
	z := html.NewTokenizer(strings.NewReader(content))
	var out []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == attr {
					out = append(out, string(val))
				}
			}
		}
	}
}

// Anchor is a note link as authored: its href and visible text.
type Anchor struct {
	Href string
	Text string
}

// NoteAnchors returns the note-link anchors of an HTML document.
func NoteAnchors(content string) []Anchor {
	z := html.NewTokenizer(strings.NewReader(content))
	var out []Anchor
	var current *Anchor
	var label strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" && notestation.NoteLinkRefID(string(val)) != "" {
					current = &Anchor{Href: string(val)}
					label.Reset()
				}
			}
		case html.TextToken:
			if current != nil {
				label.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && current != nil {
				current.Text = strings.TrimSpace(label.String())
				out = append(out, *current)
				current = nil
			}
		}
	}
}

// WithoutContentFiles drops links that point at other content documents
// rather than attachments.
func WithoutContentFiles(links LinkSet) LinkSet {
	return links.Filter(func(l Link) bool { return !IsContentFile(l.Path) })
}

func IsContentFile(p string) bool {
	lower := strings.ToLower(p)
	for _, ext := range []string{".md", ".markdown", ".html", ".htm"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
