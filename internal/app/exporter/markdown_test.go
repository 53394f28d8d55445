package exporter

import (
	"bytes"
	"testing"

	"github.com/sleroq/nsx-to-markdown/internal/app/corpus"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attachmentPage(t *testing.T) *corpus.NotePage {
	t.Helper()
	page := &corpus.NotePage{
		ID:    "n1",
		Title: "Trip",
		Attachments: []*corpus.Attachment{
			{ID: "a1", Name: "map one.png", Ref: "cmVmMQ==", Path: "Travel/attachments/map-one.png"},
			{ID: "a2", Name: "tickets & co.pdf", Path: "Travel/attachments/tickets-co.pdf"},
			{ID: "a3", Name: "unplanned.txt"},
		},
	}
	require.NoError(t, page.SetPath("Travel/Trip.md"))
	return page
}

func TestAttachmentTargets(t *testing.T) {
	got := attachmentTargets(attachmentPage(t), pathsyntax.Posix{})
	assert.Equal(t, map[string]string{
		"a1": "attachments/map-one.png",
		"a2": "attachments/tickets-co.pdf",
	}, got)
}

func TestInlineImagesAndAttachmentList(t *testing.T) {
	page := attachmentPage(t)
	targets := attachmentTargets(page, pathsyntax.Posix{})

	content, embedded := inlineImages(`<p><img ref="cmVmMQ==" src="transparent.gif"></p>`, page, targets)
	assert.Equal(t, `<p><img src="attachments/map-one.png"></p>`, content)
	assert.Equal(t, map[string]bool{"a1": true}, embedded)

	content = appendAttachmentList(content, page, targets, embedded)
	assert.Contains(t, content, "<h2>Attachments</h2>")
	assert.Contains(t, content, `<li><a href="attachments/tickets-co.pdf">tickets &amp; co.pdf</a></li>`)
	assert.NotContains(t, content, "map one.png")
	assert.NotContains(t, content, "unplanned.txt")
}

func TestAppendAttachmentListWithoutLeftovers(t *testing.T) {
	page := &corpus.NotePage{ID: "n1"}
	assert.Equal(t, "<p>x</p>", appendAttachmentList("<p>x</p>", page, nil, nil))
}

func TestObsidianImageLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sized", `<img src="attachments/a.png" width="120">`, "![|120](attachments/a.png)"},
		{"alt and px width", `<img alt="Map" src="a.png" width="300px" />`, "![Map|300](a.png)"},
		{"spaces wrapped", `<img src="my files/a.png">`, "![](<my files/a.png>)"},
		{"no src kept", `<img alt="x">`, `<img alt="x">`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, obsidianImageLinks(tt.in))
		})
	}
}

func TestHTMLDocument(t *testing.T) {
	got := htmlDocument("A & B", "\n<p>x</p>\n")
	assert.Equal(t, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>A &amp; B</title>\n</head>\n<body>\n<p>x</p>\n</body>\n</html>\n", got)
}

func TestEnsureTrailingNewline(t *testing.T) {
	assert.Equal(t, "x\n", ensureTrailingNewline("x"))
	assert.Equal(t, "x\n", ensureTrailingNewline("x\n\n\n"))
}

func TestPageFrontMatter(t *testing.T) {
	page := &corpus.NotePage{
		Title:         "Plans-1",
		OriginalTitle: "Plans",
		Tags:          []string{"work/q1", "2024", "to do", "work/q1"},
		Record:        notestation.NoteRecord{CTime: float64(1700000000), MTime: float64(1700003600)},
	}

	fm := pageFrontMatter(page, "Office", true)
	assert.Equal(t, []string{"Plans"}, fm.Aliases)
	assert.Equal(t, []string{"work/q1", "y2024", "to-do"}, fm.Tags)
	assert.Equal(t, "2023-11-14T22:13:20Z", fm.Created)
	assert.Equal(t, "2023-11-14T23:13:20Z", fm.Updated)

	plain := pageFrontMatter(page, "Office", false)
	assert.Equal(t, []string{"work/q1", "2024", "to do", "work/q1"}, plain.Tags)

	out, err := renderFrontMatter(frontMatter{Title: "Plans", Notebook: "Office"})
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Plans\nnotebook: Office\n---\n\n", out)
}

func TestSanitizeObsidianTag(t *testing.T) {
	assert.Equal(t, "project/alpha-beta", sanitizeObsidianTag("#project/alpha beta"))
	assert.Equal(t, "y42", sanitizeObsidianTag("42"))
	assert.Equal(t, "", sanitizeObsidianTag("  # "))
}

func TestProgressLine(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressLineTo(&buf, true, 2)
	p.Step("converting notes")
	assert.Contains(t, buf.String(), " 50% 1/2 converting notes")
	p.Done("done")
	assert.Contains(t, buf.String(), "100% 2/2 done")
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])

	var silent bytes.Buffer
	q := newProgressLineTo(&silent, false, 0)
	q.Step("x")
	q.Close()
	assert.Zero(t, silent.Len())
}

func TestBarWidth(t *testing.T) {
	assert.Equal(t, 36, barWidth(""))
	assert.Equal(t, 16, barWidth("30"))
	assert.Equal(t, 60, barWidth("100"))
	assert.Equal(t, 64, barWidth("300"))
}
