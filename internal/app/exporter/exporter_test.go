package exporter

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/sleroq/nsx-to-markdown/internal/infra/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeConverter struct {
	fail  string
	calls []string
}

func (f *fakeConverter) Convert(_ context.Context, content, from, to string) (string, error) {
	f.calls = append(f.calls, from+">"+to)
	if f.fail != "" && strings.Contains(content, f.fail) {
		return "", errors.New("conversion failed")
	}
	return content, nil
}

// writeArchive stores records as the JSON members of a zip and members as
// raw entries.
func writeArchive(t *testing.T, records map[string]any, members map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.nsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, rec := range records {
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(b)
		require.NoError(t, err)
	}
	for name, data := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func noteLink(refID, text string) string {
	return `<a href="notestation://remote/self/` + refID + `">` + text + `</a>`
}

func sampleRecords() map[string]any {
	return map[string]any{
		"config.json": map[string]any{
			"notebook": []string{"nb1", "nb2"},
			"note":     []string{"n1", "n2", "n3"},
		},
		"nb1": map[string]any{"title": "Home"},
		"nb2": map[string]any{"title": "Cooking"},
		"n1": map[string]any{
			"title":     "Shopping",
			"parent_id": "nb1",
			"link_id":   "1026_A",
			"ctime":     1700000000,
			"mtime":     1700000100,
			"tag":       []string{"groceries"},
			"content": `<p>See ` + noteLink("1026_B", "Recipes") + ` and ` + noteLink("1026_Z", "Gone") + `</p>` +
				`<p><img class="syno-notestation-image-object" src="webman/3rdparty/NoteStation/images/transparent.gif" ref="cmVmMQ==" width="120"></p>`,
			"attachment": map[string]any{
				"a1": map[string]any{"md5": "aaa", "name": "photo.png", "type": "image/png", "ref": "cmVmMQ=="},
				"a2": map[string]any{"md5": "bbb", "name": "manual.pdf", "type": "application/pdf"},
			},
		},
		"n2": map[string]any{
			"title":     "Recipes",
			"parent_id": "nb2",
			"link_id":   "1026_B",
			"content":   "<p>Soup</p>",
		},
		"n3": map[string]any{"title": "Secret", "parent_id": "nb1", "encrypt": true},
	}
}

func sampleMembers() map[string][]byte {
	return map[string][]byte{
		"file_aaa": pngBytes,
		"file_bbb": []byte("%PDF-1.4"),
	}
}

func gfm(t *testing.T) config.ExportFormat {
	t.Helper()
	f, err := config.LookupFormat(config.FormatGFM)
	require.NoError(t, err)
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func newExporter(t *testing.T, archive string, conv *fakeConverter) Exporter {
	t.Helper()
	return Exporter{
		Archive:     archive,
		OutputDir:   filepath.Join(t.TempDir(), "out"),
		Format:      gfm(t),
		Converter:   conv,
		Syntax:      pathsyntax.Posix{},
		FrontMatter: true,
		RawRecords:  true,
		RunID:       "run-1",
	}
}

func TestRunConvertsArchive(t *testing.T) {
	conv := &fakeConverter{}
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), conv)

	stats, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Notes)
	assert.Equal(t, 2, stats.Notebooks)
	assert.Equal(t, 1, stats.Encrypted)
	assert.Equal(t, 2, stats.Attachments)
	assert.Equal(t, 1, stats.DeadLinks)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, map[string]string{"n1": "Home/Shopping.md", "n2": "Cooking/Recipes.md"}, stats.NotePaths)
	assert.Equal(t, []string{"html>gfm", "html>gfm"}, conv.calls)
	assert.Equal(t, "../Cooking/Recipes.md", stats.Rewrites["n1"]["notestation://remote/self/1026_B"])

	shopping := readFile(t, filepath.Join(e.OutputDir, "Home", "Shopping.md"))
	assert.True(t, strings.HasPrefix(shopping, "---\ntitle: Shopping\nnotebook: Home\ntags:\n  - groceries\n"), shopping)
	assert.Contains(t, shopping, "2023-11-14T22:13:20Z")
	assert.Contains(t, shopping, `<a href="../Cooking/Recipes.md">Recipes</a>`)
	assert.Contains(t, shopping, `<a href="notestation://remote/self/1026_Z">Gone</a>`)
	assert.Contains(t, shopping, `<img src="attachments/photo.png" width="120">`)
	assert.Contains(t, shopping, `<li><a href="attachments/manual.pdf">manual.pdf</a></li>`)
	assert.NotContains(t, shopping, "photo.png</a>")
	assert.True(t, strings.HasSuffix(shopping, "\n"))

	assert.Equal(t, string(pngBytes), readFile(t, filepath.Join(e.OutputDir, "Home", "attachments", "photo.png")))
	assert.Equal(t, "%PDF-1.4", readFile(t, filepath.Join(e.OutputDir, "Home", "attachments", "manual.pdf")))
	assert.NoFileExists(t, filepath.Join(e.OutputDir, "Home", "Secret.md"))

	info, err := os.Stat(filepath.Join(e.OutputDir, "Home", "Shopping.md"))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000100), info.ModTime().Unix())
}

func TestRunWritesManifest(t *testing.T) {
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), &fakeConverter{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	dir := manifest.Dir(e.OutputDir)
	idx, err := manifest.ReadIndex(filepath.Join(dir, manifest.IndexFile))
	require.NoError(t, err)
	assert.Equal(t, "run-1", idx.RunID)
	assert.Equal(t, config.FormatGFM, idx.Format)
	assert.Equal(t, "Home/Shopping.md", idx.Notes["n1"])
	assert.Len(t, idx.Attachments, 2)

	backlinks, err := manifest.Backlinks(filepath.Join(dir, manifest.DatabaseFile), "n2")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, backlinks)

	raw := readFile(t, filepath.Join(dir, "raw", "n1.json"))
	assert.Contains(t, raw, `"title": "Shopping"`)
	assert.NotContains(t, raw, "transparent.gif")
	assert.FileExists(t, filepath.Join(dir, "README.md"))
}

func TestRunWithoutFrontMatterOrRawRecords(t *testing.T) {
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), &fakeConverter{})
	e.FrontMatter = false
	e.RawRecords = false
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	recipes := readFile(t, filepath.Join(e.OutputDir, "Cooking", "Recipes.md"))
	assert.Equal(t, "<p>Soup</p>\n", recipes)
	assert.NoDirExists(t, filepath.Join(manifest.Dir(e.OutputDir), "raw"))
}

func TestRunSkipsNotesThatFailToConvert(t *testing.T) {
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), &fakeConverter{fail: "Soup"})
	stats, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Notes)
	assert.Equal(t, 1, stats.Skipped)
	require.NotEmpty(t, stats.Warnings)
	assert.Contains(t, strings.Join(stats.Warnings, "\n"), "conversion failed")
	assert.NoFileExists(t, filepath.Join(e.OutputDir, "Cooking", "Recipes.md"))
	assert.NotContains(t, stats.NotePaths, "n2")
}

func TestRunDisambiguatesDuplicateTitles(t *testing.T) {
	records := map[string]any{
		"config.json": map[string]any{"notebook": []string{"nb1"}, "note": []string{"n1", "n2", "n3"}},
		"nb1":         map[string]any{"title": "Home"},
		"n1":          map[string]any{"title": "Dup", "parent_id": "nb1", "link_id": "1026_1", "content": "<p>one</p>"},
		"n2":          map[string]any{"title": "Dup", "parent_id": "nb1", "link_id": "1026_2", "content": "<p>two</p>"},
		"n3": map[string]any{"title": "Index", "parent_id": "nb1", "content": "<p>" +
			noteLink("1026_2", "Dup-1") + " " + noteLink("1026_9", "Dup") + "</p>"},
	}
	e := newExporter(t, writeArchive(t, records, nil), &fakeConverter{})
	stats, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Home/Dup.md", stats.NotePaths["n1"])
	assert.Equal(t, "Home/Dup-1.md", stats.NotePaths["n2"])
	index := readFile(t, filepath.Join(e.OutputDir, "Home", "Index.md"))
	assert.Contains(t, index, `<a href="Dup-1.md">Dup-1</a>`)
	assert.Contains(t, index, `<a href="Dup.md">Dup</a>`)

	dup := readFile(t, filepath.Join(e.OutputDir, "Home", "Dup-1.md"))
	assert.Contains(t, dup, "title: Dup-1\naliases:\n  - Dup\n")
}

func TestRunNamesAttachmentsWithoutExtension(t *testing.T) {
	records := map[string]any{
		"config.json": map[string]any{"notebook": []string{"nb1"}, "note": []string{"n1"}},
		"nb1":         map[string]any{"title": "Home"},
		"n1": map[string]any{
			"title": "Scans", "parent_id": "nb1", "content": "<p>x</p>",
			"attachment": map[string]any{
				"a1": map[string]any{"md5": "aaa", "name": "scan", "type": "image/jpeg"},
				"a2": map[string]any{"md5": "bbb", "name": "blob"},
			},
		},
	}
	e := newExporter(t, writeArchive(t, records, map[string][]byte{"file_aaa": []byte("jpeg"), "file_bbb": pngBytes}), &fakeConverter{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(e.OutputDir, "Home", "attachments", "scan.jpg"))
	assert.FileExists(t, filepath.Join(e.OutputDir, "Home", "attachments", "blob.png"))
}

func TestRunSkipsNoteWithUnreadableAttachment(t *testing.T) {
	records := sampleRecords()
	e := newExporter(t, writeArchive(t, records, map[string][]byte{"file_aaa": pngBytes}), &fakeConverter{})
	stats, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Notes)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Attachments)
	assert.Contains(t, strings.Join(stats.Warnings, "\n"), "manual.pdf")
	assert.NotContains(t, stats.NotePaths, "n1")
	assert.Equal(t, "Cooking/Recipes.md", stats.NotePaths["n2"])

	assert.NoFileExists(t, filepath.Join(e.OutputDir, "Home", "Shopping.md"))
	assert.NoFileExists(t, filepath.Join(e.OutputDir, "Home", "attachments", "photo.png"))
	assert.FileExists(t, filepath.Join(e.OutputDir, "Cooking", "Recipes.md"))
}

func TestRunHTMLFormat(t *testing.T) {
	format, err := config.LookupFormat(config.FormatHTML)
	require.NoError(t, err)
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), nil)
	e.Converter = nil
	e.Format = format

	stats, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Home/Shopping.html", stats.NotePaths["n1"])

	page := readFile(t, filepath.Join(e.OutputDir, "Home", "Shopping.html"))
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Shopping</title>")
	assert.Contains(t, page, `<a href="../Cooking/Recipes.html">Recipes</a>`)
	assert.NotContains(t, page, "---\n")
}

func TestRunObsidianImages(t *testing.T) {
	format, err := config.LookupFormat(config.FormatObsidian)
	require.NoError(t, err)
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), &fakeConverter{})
	e.Format = format

	_, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, readFile(t, filepath.Join(e.OutputDir, "Home", "Shopping.md")), "![|120](attachments/photo.png)")
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	e := newExporter(t, writeArchive(t, sampleRecords(), sampleMembers()), &fakeConverter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(e.OutputDir, "Home", "Shopping.md"))
}

func TestRunFailsOnMissingArchive(t *testing.T) {
	e := newExporter(t, filepath.Join(t.TempDir(), "missing.nsx"), &fakeConverter{})
	_, err := e.Run(context.Background())
	assert.Error(t, err)
}

func TestRunFailsOnCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("config.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"notebook":["nb1"],"note":[]}`))
	require.NoError(t, err)
	w, err = zw.Create("nb1")
	require.NoError(t, err)
	_, err = w.Write([]byte("{not json"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = newExporter(t, path, &fakeConverter{}).Run(context.Background())
	assert.ErrorContains(t, err, "nb1")
}

func TestNoteTimesFallBackToEachOther(t *testing.T) {
	records := map[string]any{
		"config.json": map[string]any{"notebook": []string{"nb1"}, "note": []string{"n1"}},
		"nb1":         map[string]any{"title": "Home"},
		"n1":          map[string]any{"title": "Only", "parent_id": "nb1", "ctime": "1600000000", "content": "<p>x</p>"},
	}
	e := newExporter(t, writeArchive(t, records, nil), &fakeConverter{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(e.OutputDir, "Home", "Only.md"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(time.Unix(1600000000, 0)))
}
