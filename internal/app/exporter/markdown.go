package exporter

import (
	"html"
	"regexp"
	"strings"

	"github.com/sleroq/nsx-to-markdown/internal/app/contentlinks"
	"github.com/sleroq/nsx-to-markdown/internal/app/corpus"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	nethtml "golang.org/x/net/html"
)

var imgTagPattern = regexp.MustCompile(`(?i)<img\b[^>]*>`)

// attachmentTargets returns, for each attachment of page, its path relative
// to the note, percent-encoded for use as a link target.
func attachmentTargets(page *corpus.NotePage, syntax pathsyntax.Syntax) map[string]string {
	out := make(map[string]string, len(page.Attachments))
	for _, a := range page.Attachments {
		if a.Path == "" {
			continue
		}
		rel, err := syntax.Rel(syntax.Dir(page.Path()), a.Path)
		if err != nil {
			rel = a.Path
		}
		out[a.ID] = contentlinks.EscapePath(rel)
	}
	return out
}

// inlineImages points the image placeholders of the note at the planned
// attachment files and returns the attachment ids that were embedded.
func inlineImages(content string, page *corpus.NotePage, targets map[string]string) (string, map[string]bool) {
	srcByRef := map[string]string{}
	idByRef := map[string]string{}
	for _, a := range page.Attachments {
		if a.Ref == "" || targets[a.ID] == "" {
			continue
		}
		srcByRef[a.Ref] = targets[a.ID]
		idByRef[a.Ref] = a.ID
	}
	content, usedRefs := contentlinks.ReplaceImageRefs(content, srcByRef)
	embedded := make(map[string]bool, len(usedRefs))
	for ref := range usedRefs {
		embedded[idByRef[ref]] = true
	}
	return content, embedded
}

// appendAttachmentList adds a list of links to the attachments that are not
// embedded in the note body.
func appendAttachmentList(content string, page *corpus.NotePage, targets map[string]string, embedded map[string]bool) string {
	var items []string
	for _, a := range page.Attachments {
		if embedded[a.ID] || targets[a.ID] == "" {
			continue
		}
		items = append(items, `<li><a href="`+html.EscapeString(targets[a.ID])+`">`+html.EscapeString(a.Name)+`</a></li>`)
	}
	if len(items) == 0 {
		return content
	}
	return content + "\n<h2>Attachments</h2>\n<ul>\n" + strings.Join(items, "\n") + "\n</ul>\n"
}

// obsidianImageLinks turns raw HTML images left by the converter into
// Obsidian embeds, keeping an explicit width as ![alt|width](src).
func obsidianImageLinks(content string) string {
	return imgTagPattern.ReplaceAllStringFunc(content, func(tag string) string {
		src, alt, width := imageAttrs(tag)
		if src == "" {
			return tag
		}
		if strings.ContainsAny(src, " \t") {
			src = "<" + src + ">"
		}
		label := alt
		if width != "" {
			label = alt + "|" + width
		}
		return "![" + label + "](" + src + ")"
	})
}

func imageAttrs(tag string) (src, alt, width string) {
	z := nethtml.NewTokenizer(strings.NewReader(tag))
	switch z.Next() {
	case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
	default:
		return "", "", ""
	}
	for _, a := range z.Token().Attr {
		switch a.Key {
		case "src":
			src = a.Val
		case "alt":
			alt = a.Val
		case "width":
			width = strings.TrimSuffix(strings.TrimSpace(a.Val), "px")
		}
	}
	return src, alt, width
}

func htmlDocument(title, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n</head>\n<body>\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func ensureTrailingNewline(s string) string {
	s = strings.TrimRight(s, "\n")
	return s + "\n"
}
