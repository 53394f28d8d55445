// Package pathname turns arbitrary titles into safe, length-bounded file and
// directory names that are legal on both POSIX and Windows file systems.
package pathname

import (
	"math/rand/v2"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Options struct {
	MaxLength            int
	AllowUnicode         bool
	AllowUppercase       bool
	AllowNonAlphanumeric bool
	AllowSpaces          bool
	SpaceReplacement     string
}

func DefaultOptions() Options {
	return Options{
		MaxLength:            64,
		AllowUnicode:         true,
		AllowUppercase:       true,
		AllowNonAlphanumeric: true,
		AllowSpaces:          false,
		SpaceReplacement:     "-",
	}
}

const maxExtensionLength = 8

// randomName fills in names that clean down to nothing.
var randomName = func() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 6)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}

// CleanFileName sanitizes s for use as a file name. When the result is too
// long the stem is shortened and the extension kept.
func CleanFileName(s string, opts Options) string {
	return shortenFileName(clean(s, opts), opts.MaxLength)
}

func CleanDirectoryName(s string, opts Options) string {
	return truncate(clean(s, opts), opts.MaxLength)
}

// CleanDirectoryPath cleans every component of a slash separated path and
// keeps the separators, including a leading one.
func CleanDirectoryPath(p string, opts Options) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			if i == 0 {
				out = append(out, "")
			}
			continue
		}
		out = append(out, CleanDirectoryName(part, opts))
	}
	return strings.Join(out, "/")
}

func clean(s string, opts Options) string {
	s = strings.TrimSpace(s)
	if u, err := url.QueryUnescape(s); err == nil {
		s = u
	}
	if !opts.AllowUnicode {
		s = foldToASCII(s)
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case isForbiddenRune(r):
			b.WriteRune('-')
		case unicode.IsSpace(r):
			if opts.AllowSpaces {
				b.WriteRune(' ')
			} else {
				b.WriteString(opts.SpaceReplacement)
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !opts.AllowUppercase {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case opts.AllowNonAlphanumeric:
			b.WriteRune(r)
		}
	}

	name := collapseRuns(b.String(), '-')
	if len([]rune(opts.SpaceReplacement)) == 1 {
		name = collapseRuns(name, []rune(opts.SpaceReplacement)[0])
	}

	parts := strings.Split(name, ".")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, " -_")
		if part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return randomName()
	}
	name = strings.Join(kept, ".")

	if isWindowsReservedName(name) {
		name = "_" + name
	}
	return name
}

func isForbiddenRune(r rune) bool {
	if r == 0 || unicode.IsControl(r) {
		return true
	}
	switch r {
	case '/', '\\', '<', '>', ':', '"', '|', '?', '*':
		return true
	}
	return false
}

func foldToASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseRuns(s string, r rune) string {
	var b strings.Builder
	prev := false
	for _, c := range s {
		if c == r {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isWindowsReservedName(name string) bool {
	if name == "" {
		return false
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.IndexRune(upper, '.'); idx >= 0 {
		upper = upper[:idx]
	}
	switch upper {
	case "CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9":
		return true
	default:
		return false
	}
}

func shortenFileName(name string, max int) string {
	r := []rune(name)
	if max <= 0 || len(r) <= max {
		return name
	}
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return truncate(name, max)
	}
	stem := []rune(name[:dot])
	ext := []rune(name[dot:])
	if len(ext) > maxExtensionLength+1 {
		ext = ext[:maxExtensionLength+1]
	}
	room := max - len(ext)
	if room < 1 {
		return truncate(name, max)
	}
	if len(stem) > room {
		stem = stem[:room]
	}
	s := strings.TrimRight(string(stem), " -_.")
	if s == "" {
		s = string(stem)
	}
	return s + string(ext)
}

func truncate(name string, max int) string {
	r := []rune(name)
	if max <= 0 || len(r) <= max {
		return name
	}
	s := strings.TrimRight(string(r[:max]), " -_.")
	if s == "" {
		return string(r[:max])
	}
	return s
}
