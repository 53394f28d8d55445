// Package manifest records what an export produced: a JSON index of note
// paths, raw record sidecars and a SQLite database of notes, attachments,
// note links and link rewrites.
package manifest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	DirName      = "_nsx"
	IndexFile    = "index.json"
	DatabaseFile = "manifest.sqlite"
	rawDirName   = "raw"
)

type Note struct {
	ID       string
	Title    string
	Notebook string
	Path     string
	Tags     []string
	Created  time.Time
	Modified time.Time
}

type Attachment struct {
	ID     string
	NoteID string
	Name   string
	Path   string
	MIME   string
}

type Link struct {
	SourceID string
	TargetID string
	Raw      string
	Pass     string
}

type Rewrite struct {
	NoteID string
	Old    string
	New    string
}

type Manifest struct {
	RunID       string
	Source      string
	Format      string
	CreatedAt   time.Time
	Notes       []Note
	Attachments []Attachment
	Links       []Link
	DeadLinks   []Link
	Rewrites    []Rewrite
}

// Index is the JSON form of a manifest: id to path lookups.
type Index struct {
	RunID       string            `json:"run_id"`
	Source      string            `json:"source"`
	Format      string            `json:"format"`
	Notes       map[string]string `json:"notes"`
	Attachments map[string]string `json:"attachments"`
}

func Dir(outputDir string) string {
	return filepath.Join(outputDir, DirName)
}

// Write stores the index, the readme and the database under the metadata
// directory of outputDir.
func Write(outputDir string, m Manifest) error {
	dir := Dir(outputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeReadme(dir); err != nil {
		return err
	}
	if err := WriteIndex(filepath.Join(dir, IndexFile), m); err != nil {
		return err
	}
	if err := WriteDatabase(filepath.Join(dir, DatabaseFile), m); err != nil {
		return fmt.Errorf("write manifest database: %w", err)
	}
	return nil
}

func WriteIndex(path string, m Manifest) error {
	idx := Index{
		RunID:       m.RunID,
		Source:      m.Source,
		Format:      m.Format,
		Notes:       make(map[string]string, len(m.Notes)),
		Attachments: make(map[string]string, len(m.Attachments)),
	}
	for _, n := range m.Notes {
		idx.Notes[n.ID] = n.Path
	}
	for _, a := range m.Attachments {
		idx.Attachments[a.ID] = a.Path
	}
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func ReadIndex(path string) (Index, error) {
	var idx Index
	b, err := os.ReadFile(path)
	if err != nil {
		return idx, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &idx); err != nil {
		return idx, fmt.Errorf("decode %s: %w", path, err)
	}
	return idx, nil
}

// WriteRaw stores payload as the JSON sidecar of the record id.
func WriteRaw(outputDir, id string, payload any) error {
	dir := filepath.Join(Dir(outputDir), rawDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode raw record %s: %w", id, err)
	}
	return os.WriteFile(filepath.Join(dir, id+".json"), b, 0o644)
}

func writeReadme(dir string) error {
	readme := strings.TrimSpace(`This folder stores converter metadata for this export.

What is inside:
- index.json with note ID -> note path and attachment ID -> file path mappings
- manifest.sqlite with notes, attachments, resolved note links and link rewrites
- raw/ with one JSON sidecar per exported note: <note-id>.json

Can I delete this folder?
- Yes, if you do not need converter metadata.
- Deleting it will not break the exported notes.
- Running the converter again restores it.`) + "\n"
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return fmt.Errorf("write metadata readme: %w", err)
	}
	return nil
}

func openDBAt(path string) (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("file:%s", path))
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id     TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			format     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id       TEXT PRIMARY KEY,
			title    TEXT NOT NULL,
			notebook TEXT NOT NULL,
			path     TEXT NOT NULL UNIQUE,
			tags     TEXT,
			ctime    INTEGER,
			mtime    INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id      TEXT PRIMARY KEY,
			note_id TEXT NOT NULL,
			name    TEXT NOT NULL,
			path    TEXT NOT NULL UNIQUE,
			mime    TEXT,
			FOREIGN KEY(note_id) REFERENCES notes(id)
		);`,
		`CREATE TABLE IF NOT EXISTS links (
			id        INTEGER PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT,
			raw_link  TEXT NOT NULL,
			pass      TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);`,
		`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);`,
		`CREATE TABLE IF NOT EXISTS rewrites (
			id      INTEGER PRIMARY KEY,
			note_id TEXT NOT NULL,
			old     TEXT NOT NULL,
			new     TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rewrites_note ON rewrites(note_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteDatabase builds the database in a temp file and moves it over path.
func WriteDatabase(path string, m Manifest) error {
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	db, err := openDBAt(tmpPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := insertAll(tx, m); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func insertAll(tx *sql.Tx, m Manifest) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := tx.Exec(`INSERT INTO runs (run_id, source, format, created_at) VALUES (?, ?, ?, ?)`,
		m.RunID, m.Source, m.Format, created.Unix()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, n := range m.Notes {
		tags := append([]string(nil), n.Tags...)
		sort.Strings(tags)
		if _, err := tx.Exec(`INSERT INTO notes (id, title, notebook, path, tags, ctime, mtime) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Title, n.Notebook, n.Path, strings.Join(tags, ","), unixOrNil(n.Created), unixOrNil(n.Modified)); err != nil {
			return fmt.Errorf("insert note %s: %w", n.ID, err)
		}
	}
	for _, a := range m.Attachments {
		if _, err := tx.Exec(`INSERT INTO attachments (id, note_id, name, path, mime) VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.NoteID, a.Name, a.Path, a.MIME); err != nil {
			return fmt.Errorf("insert attachment %s: %w", a.ID, err)
		}
	}
	for _, l := range append(append([]Link(nil), m.Links...), m.DeadLinks...) {
		var target any
		if l.TargetID != "" {
			target = l.TargetID
		}
		if _, err := tx.Exec(`INSERT INTO links (source_id, target_id, raw_link, pass) VALUES (?, ?, ?, ?)`,
			l.SourceID, target, l.Raw, l.Pass); err != nil {
			return fmt.Errorf("insert link from %s: %w", l.SourceID, err)
		}
	}
	for _, r := range m.Rewrites {
		if _, err := tx.Exec(`INSERT INTO rewrites (note_id, old, new) VALUES (?, ?, ?)`, r.NoteID, r.Old, r.New); err != nil {
			return fmt.Errorf("insert rewrite for %s: %w", r.NoteID, err)
		}
	}
	return nil
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// Backlinks returns the ids of notes linking to targetID, read from a
// written database.
func Backlinks(dbPath, targetID string) ([]string, error) {
	db, err := openDBAt(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT DISTINCT source_id FROM links WHERE target_id = ? ORDER BY source_id`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
