package exporter

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sleroq/nsx-to-markdown/internal/app/corpus"
	"github.com/sleroq/nsx-to-markdown/internal/domain/notestation"
	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Title    string   `yaml:"title"`
	Aliases  []string `yaml:"aliases,omitempty"`
	Notebook string   `yaml:"notebook,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Created  string   `yaml:"created,omitempty"`
	Updated  string   `yaml:"updated,omitempty"`
}

func pageFrontMatter(page *corpus.NotePage, notebook string, obsidianTags bool) frontMatter {
	fm := frontMatter{Title: page.Title, Notebook: notebook}
	if page.OriginalTitle != "" && page.OriginalTitle != page.Title {
		fm.Aliases = []string{page.OriginalTitle}
	}
	if obsidianTags {
		fm.Tags = sanitizeObsidianTags(page.Tags)
	} else {
		for _, tag := range page.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				fm.Tags = append(fm.Tags, tag)
			}
		}
	}
	if created, modified, ok := notestation.NoteTimestamps(page.Record); ok {
		fm.Created = created.Format(time.RFC3339)
		fm.Updated = modified.Format(time.RFC3339)
	}
	return fm
}

func renderFrontMatter(fm frontMatter) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return "---\n" + buf.String() + "---\n\n", nil
}

func sanitizeObsidianTags(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		tag := sanitizeObsidianTag(item)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// sanitizeObsidianTag makes raw usable as an Obsidian tag: nested parts are
// kept, other punctuation becomes '-', and all-digit tags get a 'y' prefix.
func sanitizeObsidianTag(raw string) string {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if raw == "" {
		return ""
	}

	parts := strings.Split(raw, "/")
	cleanedParts := make([]string, 0, len(parts))
	for _, part := range parts {
		cleaned := sanitizeObsidianTagPart(part)
		if cleaned == "" {
			continue
		}
		cleanedParts = append(cleanedParts, cleaned)
	}

	if len(cleanedParts) == 0 {
		return ""
	}

	tag := strings.Join(cleanedParts, "/")
	hasNonDigit := false
	for _, r := range tag {
		if r == '/' {
			continue
		}
		if !unicode.IsDigit(r) {
			hasNonDigit = true
			break
		}
	}
	if !hasNonDigit {
		tag = "y" + tag
	}

	return tag
}

func sanitizeObsidianTagPart(part string) string {
	part = strings.TrimSpace(part)
	if part == "" {
		return ""
	}

	var b strings.Builder
	lastHyphen := false
	for _, r := range part {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
			lastHyphen = r == '-'
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
