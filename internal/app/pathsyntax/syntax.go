// Package pathsyntax holds the platform rules for path legality, link
// decoding and path arithmetic. Paths passed to a Syntax are in slash form;
// Native converts them for the host file system.
package pathsyntax

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"strings"
)

const (
	ModeAuto    = "auto"
	ModePosix   = "posix"
	ModeWindows = "windows"
)

var ErrUnknownMode = errors.New("unknown path syntax mode")

type Syntax interface {
	Name() string
	// Valid reports whether p can be treated as a path at all.
	Valid(p string) bool
	// FromLink turns a link target into path form: file URIs are unwrapped
	// and percent escapes decoded.
	FromLink(target string) string
	IsAbs(p string) bool
	Clean(p string) string
	Join(elem ...string) string
	Dir(p string) string
	Rel(base, target string) (string, error)
	// Within reports whether p lies inside root.
	Within(root, p string) bool
	// CollisionKey maps a file name to the key two names collide on.
	CollisionKey(name string) string
	Native(p string) string
}

func Resolve(mode string) (Syntax, error) {
	mode = strings.TrimSpace(strings.ToLower(mode))
	if mode == "" || mode == ModeAuto {
		return ForOS(runtime.GOOS), nil
	}
	switch mode {
	case ModePosix:
		return Posix{}, nil
	case ModeWindows:
		return Windows{}, nil
	}
	return nil, fmt.Errorf("%w %q: expected auto, posix, or windows", ErrUnknownMode, mode)
}

func ForOS(goos string) Syntax {
	if goos == "windows" {
		return Windows{}
	}
	return Posix{}
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func hasFileScheme(s string) bool {
	return len(s) >= 7 && strings.EqualFold(s[:7], "file://")
}

// relSlash mirrors filepath.Rel for cleaned slash paths. fold makes
// component comparison case-insensitive.
func relSlash(base, target string, fold bool) (string, error) {
	base, target = path.Clean(base), path.Clean(target)
	eq := func(a, b string) bool {
		if fold {
			return strings.EqualFold(a, b)
		}
		return a == b
	}
	if eq(base, target) {
		return ".", nil
	}
	if base == "." {
		base = ""
	}
	if strings.HasPrefix(base, "/") != strings.HasPrefix(target, "/") {
		return "", fmt.Errorf("can't make %s relative to %s", target, base)
	}

	bs := splitSlash(base)
	ts := splitSlash(target)
	i := 0
	for i < len(bs) && i < len(ts) && eq(bs[i], ts[i]) {
		i++
	}
	for _, part := range bs[i:] {
		if part == ".." {
			return "", fmt.Errorf("can't make %s relative to %s", target, base)
		}
	}

	parts := make([]string, 0, len(bs)-i+len(ts)-i)
	for range bs[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, ts[i:]...)
	if len(parts) == 0 {
		return ".", nil
	}
	return strings.Join(parts, "/"), nil
}

func splitSlash(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

func within(s Syntax, root, p string) bool {
	rel, err := s.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
