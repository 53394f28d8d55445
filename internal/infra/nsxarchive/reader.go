// Package nsxarchive reads Note Station exports, either as the original zip
// file or unpacked into a directory.
package nsxarchive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
)

type Archive struct {
	path    string
	dir     string
	zr      *zip.ReadCloser
	members map[string]*zip.File
}

// Open opens the export at path. A directory is read member by member;
// anything else must be a zip file.
func Open(path string) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if info.IsDir() {
		return &Archive{path: path, dir: path}, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	a := &Archive{path: path, zr: zr, members: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.members[f.Name] = f
	}
	return a, nil
}

func (a *Archive) Path() string { return a.path }

func (a *Archive) Close() error {
	if a.zr == nil {
		return nil
	}
	return a.zr.Close()
}

// Members lists the member names of the archive in sorted order.
func (a *Archive) Members() ([]string, error) {
	var out []string
	if a.zr != nil {
		for name := range a.members {
			out = append(out, name)
		}
	} else {
		entries, err := os.ReadDir(a.dir)
		if err != nil {
			return nil, fmt.Errorf("read archive dir: %w", err)
		}
		for _, ent := range entries {
			if !ent.IsDir() {
				out = append(out, ent.Name())
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (a *Archive) ReadConfig() (notestation.ArchiveConfig, error) {
	var cfg notestation.ArchiveConfig
	if err := a.ReadRecord(notestation.ConfigRecordID, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadRecord decodes the JSON member named id into v.
func (a *Archive) ReadRecord(id string, v any) error {
	b, err := a.read(id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", notestation.ErrCorruptRecord, id, err)
	}
	return nil
}

func (a *Archive) ReadAttachment(name string) ([]byte, error) {
	return a.read(name)
}

func (a *Archive) read(name string) ([]byte, error) {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return nil, fmt.Errorf("%w: %q", notestation.ErrRecordNotFound, name)
	}

	if a.zr == nil {
		b, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(name)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", notestation.ErrRecordNotFound, name)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return b, nil
	}

	f, ok := a.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", notestation.ErrRecordNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", name, err)
	}
	return b, nil
}
