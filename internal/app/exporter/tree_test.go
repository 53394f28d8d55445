package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/infra/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// treeFixture lays out root/src with two notebooks and a file outside the
// source directory.
func treeFixture(t *testing.T) (root string) {
	t.Helper()
	root = t.TempDir()
	writeFile(t, filepath.Join(root, "src", "notes", "a.md"),
		"![one](img/one.png) [b](b.md) [old](page.html) [out](../../outside/x.pdf)\n")
	writeFile(t, filepath.Join(root, "src", "notes", "b.md"), "# B\n")
	writeFile(t, filepath.Join(root, "src", "notes", "img", "one.png"), "png")
	writeFile(t, filepath.Join(root, "src", "My Notes", "c.md"), "![pic](pic.png) [a](../notes/a.md)\n")
	writeFile(t, filepath.Join(root, "src", "My Notes", "pic.png"), "pic")
	writeFile(t, filepath.Join(root, "src", "notes", "ignore.txt"), "not a document")
	writeFile(t, filepath.Join(root, "outside", "x.pdf"), "pdf")
	return root
}

func newTreeConverter(t *testing.T, root string, conv *fakeConverter) TreeConverter {
	t.Helper()
	return TreeConverter{
		SourceDir: filepath.Join(root, "src"),
		OutputDir: filepath.Join(root, "export", "vault"),
		Format:    gfm(t),
		Converter: conv,
		Syntax:    pathsyntax.Posix{},
		RunID:     "tree-run",
	}
}

func TestTreeConverterCopiesAndRelocates(t *testing.T) {
	root := treeFixture(t)
	conv := &fakeConverter{}
	tc := newTreeConverter(t, root, conv)

	stats, err := tc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Notes)
	assert.Equal(t, 2, stats.Attachments)
	assert.Equal(t, 1, stats.Relocated)
	assert.Equal(t, 1, stats.MissingLinks)
	assert.Equal(t, map[string]string{
		"My Notes/c.md": "My-Notes/c.md",
		"notes/a.md":    "notes/a.md",
		"notes/b.md":    "notes/b.md",
	}, stats.NotePaths)
	assert.Equal(t, []string{"markdown>gfm", "markdown>gfm", "markdown>gfm"}, conv.calls)

	out := tc.OutputDir
	a := readFile(t, filepath.Join(out, "notes", "a.md"))
	assert.Equal(t, "![one](img/one.png) [b](b.md) [old](page.md) [out](../../../outside/x.pdf)\n", a)
	assert.Equal(t, "png", readFile(t, filepath.Join(out, "notes", "img", "one.png")))

	c := readFile(t, filepath.Join(out, "My-Notes", "c.md"))
	assert.Equal(t, "![pic](../My%20Notes/pic.png) [a](../notes/a.md)\n", c)
	assert.Equal(t, "pic", readFile(t, filepath.Join(out, "My Notes", "pic.png")))

	assert.NoFileExists(t, filepath.Join(out, "notes", "ignore.txt"))
	assert.NoFileExists(t, filepath.Join(out, "outside", "x.pdf"))

	idx, err := manifest.ReadIndex(filepath.Join(manifest.Dir(out), manifest.IndexFile))
	require.NoError(t, err)
	assert.Equal(t, "My-Notes/c.md", idx.Notes["My Notes/c.md"])
	assert.Equal(t, "notes/img/one.png", idx.Attachments["notes/img/one.png"])
}

func TestTreeConverterAbsoluteLinks(t *testing.T) {
	root := treeFixture(t)
	tc := newTreeConverter(t, root, &fakeConverter{})
	tc.AbsoluteLinks = true

	_, err := tc.Run(context.Background())
	require.NoError(t, err)

	want := filepath.ToSlash(filepath.Join(root, "outside", "x.pdf"))
	assert.Contains(t, readFile(t, filepath.Join(tc.OutputDir, "notes", "a.md")), "[out]("+want+")")
}

func TestTreeConverterSkipsOutputInsideSource(t *testing.T) {
	root := treeFixture(t)
	tc := newTreeConverter(t, root, &fakeConverter{})
	tc.OutputDir = filepath.Join(root, "src", "converted")
	writeFile(t, filepath.Join(tc.OutputDir, "stale.md"), "old run\n")

	stats, err := tc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Notes)
	assert.NotContains(t, stats.NotePaths, "converted/stale.md")
}

func TestTreeConverterIgnoresLinks(t *testing.T) {
	root := treeFixture(t)
	tc := newTreeConverter(t, root, &fakeConverter{})
	tc.IgnoreLinks = []string{"**/*.pdf"}

	stats, err := tc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Relocated)
	assert.Contains(t, readFile(t, filepath.Join(tc.OutputDir, "notes", "a.md")), "[out](../../outside/x.pdf)")
}

func TestTreeConverterRejectsSameDirectory(t *testing.T) {
	root := treeFixture(t)
	tc := newTreeConverter(t, root, &fakeConverter{})
	tc.OutputDir = tc.SourceDir

	_, err := tc.Run(context.Background())
	assert.Error(t, err)
}

func TestTreeConverterSkipsFailedConversions(t *testing.T) {
	root := treeFixture(t)
	tc := newTreeConverter(t, root, &fakeConverter{fail: "# B"})

	stats, err := tc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Notes)
	assert.Equal(t, 1, stats.Skipped)
	assert.NoFileExists(t, filepath.Join(tc.OutputDir, "notes", "b.md"))
}
