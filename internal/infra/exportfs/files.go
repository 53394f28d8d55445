// Package exportfs persists converted notes and attachments to disk.
package exportfs

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const tempFilePrefix = ".nsx-tmp-"

// Store writes data to path through a temp file in the same directory and a
// rename, creating parent directories as needed.
func Store(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, creating the parent directories of dst.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// DetectFileExtension guesses a file extension, dot included, from the
// leading bytes of content. It returns "" when nothing better than
// application/octet-stream can be said.
func DetectFileExtension(content []byte) string {
	if len(content) == 0 {
		return ""
	}

	sniffLen := len(content)
	if sniffLen > 512 {
		sniffLen = 512
	}

	return ExtensionForMIME(http.DetectContentType(content[:sniffLen]))
}

// ExtensionForMIME maps a MIME type, parameters allowed, to a file
// extension with its dot.
func ExtensionForMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	mimeType = strings.ToLower(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		return ""
	}

	preferredExt := map[string]string{
		"image/jpeg":       ".jpg",
		"image/png":        ".png",
		"image/gif":        ".gif",
		"image/webp":       ".webp",
		"image/bmp":        ".bmp",
		"image/svg+xml":    ".svg",
		"image/x-icon":     ".ico",
		"application/pdf":  ".pdf",
		"application/zip":  ".zip",
		"application/json": ".json",
		"audio/mpeg":       ".mp3",
		"video/mp4":        ".mp4",
		"text/html":        ".html",
		"text/plain":       ".txt",
	}
	if ext, ok := preferredExt[mimeType]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	sort.Strings(exts)
	return exts[0]
}

// ApplyFileTimes sets the modification time of path and, where the platform
// allows it, its creation time. Zero times are ignored.
func ApplyFileTimes(path string, created, modified time.Time) error {
	if modified.IsZero() {
		modified = created
	}
	if modified.IsZero() {
		return nil
	}
	if err := os.Chtimes(path, modified, modified); err != nil {
		return err
	}
	if !created.IsZero() {
		if err := setFileCreationTime(path, created); err != nil {
			return err
		}
	}
	return nil
}
