package pathsyntax

import (
	"path"
	"path/filepath"
	"strings"
)

type Posix struct{}

func (Posix) Name() string { return ModePosix }

func (Posix) Valid(p string) bool {
	return p != "" && !strings.ContainsRune(p, 0)
}

func (Posix) FromLink(target string) string {
	target = strings.TrimSpace(target)
	if hasFileScheme(target) {
		rest := target[len("file://"):]
		if !strings.HasPrefix(rest, "/") {
			// file://host/path: the host part carries no meaning locally.
			idx := strings.Index(rest, "/")
			if idx < 0 {
				return ""
			}
			rest = rest[idx:]
		}
		return unescape(rest)
	}
	return unescape(target)
}

func (Posix) IsAbs(p string) bool { return strings.HasPrefix(p, "/") }

func (Posix) Clean(p string) string { return path.Clean(p) }

func (Posix) Join(elem ...string) string { return path.Join(elem...) }

func (Posix) Dir(p string) string { return path.Dir(p) }

func (Posix) Rel(base, target string) (string, error) {
	return relSlash(base, target, false)
}

func (s Posix) Within(root, p string) bool { return within(s, root, p) }

func (Posix) CollisionKey(name string) string { return name }

func (Posix) Native(p string) string { return filepath.FromSlash(p) }
