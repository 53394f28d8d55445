package contentlinks

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	nethtml "golang.org/x/net/html"
)

var (
	markdownDestination = regexp.MustCompile(`\]\([ \t]*(<[^>\n]*>|(?:\\.|\([^\s()\\]*\)|[^\s()\\])+)`)
	markdownReference   = regexp.MustCompile(`(?m)^[ \t]{0,3}\[[^\]\n]+\]:[ \t]*(<[^>\n]*>|\S+)`)
	tagAttribute        = regexp.MustCompile("([^\\s\"'<>/=]+)(?:[ \\t\\r\\n]*=[ \\t\\r\\n]*(?:\"([^\"]*)\"|'([^']*)'|([^\\s\"'=<>`]+)))?")
)

type edit struct {
	start, end int
	value      string
}

// Rewrite replaces every link target equal to a key of mapping with its
// value. Only markdown destinations and the href/src attributes of html tags
// are touched; prose and markdown code are left alone. Targets are matched
// whole, in a single pass.
func Rewrite(format Format, content string, mapping map[string]string) string {
	if len(mapping) == 0 || content == "" {
		return content
	}

	var protected [][2]int
	var edits []edit
	if format == Markdown {
		protected = codeRanges(content)
		for _, re := range []*regexp.Regexp{markdownDestination, markdownReference} {
			for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
				start, end := m[2], m[3]
				wrapped := content[start] == '<'
				if wrapped {
					start, end = start+1, end-1
				}
				next, ok := mapping[content[start:end]]
				if !ok {
					continue
				}
				if !wrapped && strings.ContainsAny(next, " \t") {
					next = "<" + next + ">"
				}
				edits = append(edits, edit{start: start, end: end, value: next})
			}
		}
		for _, span := range markdownHTMLSpans(content) {
			edits = append(edits, tagTargetEdits(content[span[0]:span[1]], span[0], mapping)...)
		}
	} else {
		edits = tagTargetEdits(content, 0, mapping)
	}
	return applyEdits(content, edits, protected)
}

// tagTargetEdits returns the edits for the href and src attributes of the
// start tags in fragment, which begins at offset in the full content.
// Text between tags is left alone.
func tagTargetEdits(fragment string, offset int, mapping map[string]string) []edit {
	var edits []edit
	z := nethtml.NewTokenizer(strings.NewReader(fragment))
	pos := 0
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			return edits
		}
		tag := string(z.Raw())
		start := offset + pos
		pos += len(tag)
		if tt != nethtml.StartTagToken && tt != nethtml.SelfClosingTagToken {
			continue
		}
		nameEnd := strings.IndexAny(tag, " \t\r\n\f/>")
		if nameEnd < 0 {
			continue
		}
		for _, m := range tagAttribute.FindAllStringSubmatchIndex(tag[nameEnd:], -1) {
			name := strings.ToLower(tag[nameEnd+m[2] : nameEnd+m[3]])
			if name != "href" && name != "src" {
				continue
			}
			group := 2
			for group <= 4 && m[2*group] < 0 {
				group++
			}
			if group > 4 {
				continue
			}
			vs, ve := nameEnd+m[2*group], nameEnd+m[2*group+1]
			value := tag[vs:ve]
			next, ok := mapping[value]
			if !ok {
				unescaped := html.UnescapeString(value)
				if unescaped == value {
					continue
				}
				if next, ok = mapping[unescaped]; !ok {
					continue
				}
				next = html.EscapeString(next)
			}
			if group == 4 && strings.ContainsAny(next, " \t\r\n\"'=<>`") {
				next = `"` + strings.ReplaceAll(next, `"`, "&quot;") + `"`
			}
			edits = append(edits, edit{start: start + vs, end: start + ve, value: next})
		}
	}
}

func applyEdits(content string, edits []edit, protected [][2]int) string {
	if len(edits) == 0 {
		return content
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	last := 0
	for _, e := range edits {
		if e.start < last || inRanges(e.start, protected) {
			continue
		}
		b.WriteString(content[last:e.start])
		b.WriteString(e.value)
		last = e.end
	}
	b.WriteString(content[last:])
	return b.String()
}

func inRanges(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// codeRanges returns the byte ranges of fenced code blocks and inline code
// spans of a markdown document.
func codeRanges(content string) [][2]int {
	var out [][2]int
	offset := 0
	fenceStart := -1
	fenceMarker := ""
	for _, line := range strings.SplitAfter(content, "\n") {
		trim := strings.TrimLeft(line, " ")
		switch {
		case fenceStart >= 0:
			if strings.HasPrefix(trim, fenceMarker) {
				out = append(out, [2]int{fenceStart, offset + len(line)})
				fenceStart = -1
			}
		case strings.HasPrefix(trim, "```") || strings.HasPrefix(trim, "~~~"):
			fenceStart = offset
			fenceMarker = trim[:3]
		default:
			out = append(out, inlineCodeRanges(line, offset)...)
		}
		offset += len(line)
	}
	if fenceStart >= 0 {
		out = append(out, [2]int{fenceStart, len(content)})
	}
	return out
}

func inlineCodeRanges(line string, offset int) [][2]int {
	var out [][2]int
	i := 0
	for i < len(line) {
		if line[i] != '`' {
			i++
			continue
		}
		n := 0
		for i+n < len(line) && line[i+n] == '`' {
			n++
		}
		fence := strings.Repeat("`", n)
		closing := -1
		for j := i + n; j < len(line); {
			idx := strings.Index(line[j:], fence)
			if idx < 0 {
				break
			}
			k := j + idx
			m := 0
			for k+m < len(line) && line[k+m] == '`' {
				m++
			}
			if m == n {
				closing = k
				break
			}
			j = k + m
		}
		if closing < 0 {
			i += n
			continue
		}
		out = append(out, [2]int{offset + i, offset + closing + n})
		i = closing + n
	}
	return out
}

// Relocator computes new targets for links whose files stay where they are
// while the content document moves.
type Relocator struct {
	Syntax pathsyntax.Syntax
	// Absolute produces absolute targets instead of corrected relative ones.
	Absolute bool
}

// Plan maps the raw target of each link, as seen from originalPath, to a
// target that reaches the same file from newPath. Links that need no change
// are omitted.
func (r Relocator) Plan(links LinkSet, originalPath, newPath string) map[string]string {
	cl := Classifier{Syntax: r.Syntax}
	out := map[string]string{}
	for _, l := range links.Links() {
		target := cl.Resolve(originalPath, l)
		next := target
		if !r.Absolute {
			rel, err := r.Syntax.Rel(r.Syntax.Dir(newPath), target)
			if err == nil {
				next = rel
			}
		}
		if rawPathPart(l.Raw) != l.Path && strings.Contains(l.Raw, "%") {
			next = EscapePath(next)
		}
		next += rawSuffix(l.Raw)
		if next != l.Raw {
			out[l.Raw] = next
		}
	}
	return out
}

// SuffixRewrites maps links whose path ends in from to the same target
// ending in to, keeping any fragment.
func SuffixRewrites(links LinkSet, from, to string) map[string]string {
	out := map[string]string{}
	for _, l := range links.Links() {
		p := rawPathPart(l.Raw)
		if len(p) < len(from) || !strings.EqualFold(p[len(p)-len(from):], from) {
			continue
		}
		out[l.Raw] = p[:len(p)-len(from)] + to + rawSuffix(l.Raw)
	}
	return out
}

// EscapePath percent-encodes each segment of a slash path.
func EscapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if i == 0 && len(part) == 2 && part[1] == ':' {
			continue
		}
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func rawPathPart(raw string) string {
	if idx := strings.IndexAny(raw, "#?"); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

func rawSuffix(raw string) string {
	if idx := strings.IndexAny(raw, "#?"); idx >= 0 {
		return raw[idx:]
	}
	return ""
}

// ReplaceImageRefs points each <img ref="..."> placeholder whose ref is a
// key of srcByRef at the mapped path. Everything else is copied verbatim.
// It returns the refs that were used.
func ReplaceImageRefs(content string, srcByRef map[string]string) (string, map[string]bool) {
	used := map[string]bool{}
	if len(srcByRef) == 0 {
		return content, used
	}

	z := nethtml.NewTokenizer(strings.NewReader(content))
	var b bytes.Buffer
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			break
		}
		raw := append([]byte(nil), z.Raw()...)
		if tt != nethtml.StartTagToken && tt != nethtml.SelfClosingTagToken {
			b.Write(raw)
			continue
		}
		tok := z.Token()
		if tok.Data != "img" {
			b.Write(raw)
			continue
		}
		ref := ""
		for _, a := range tok.Attr {
			if a.Key == "ref" {
				ref = a.Val
			}
		}
		src, ok := srcByRef[ref]
		if ref == "" || !ok {
			b.Write(raw)
			continue
		}
		used[ref] = true
		b.WriteString(imageTag(tok, src))
	}
	return b.String(), used
}

func imageTag(tok nethtml.Token, src string) string {
	var b strings.Builder
	b.WriteString(`<img src="`)
	b.WriteString(html.EscapeString(src))
	b.WriteString(`"`)
	for _, a := range tok.Attr {
		switch a.Key {
		case "src", "ref", "class":
			continue
		}
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	return b.String()
}
