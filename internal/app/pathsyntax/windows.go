package pathsyntax

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

type Windows struct{}

func (Windows) Name() string { return ModeWindows }

func (Windows) Valid(p string) bool {
	if p == "" || hasFileScheme(p) {
		return false
	}
	p = toSlash(p)
	vol, rest := splitVolume(p)
	if vol == "" && strings.Contains(rest, ":") {
		return false
	}
	for _, r := range rest {
		if r < 32 {
			return false
		}
		switch r {
		case '<', '>', ':', '"', '|', '?', '*':
			return false
		}
	}
	return true
}

func (Windows) FromLink(target string) string {
	target = strings.TrimSpace(target)
	if hasFileScheme(target) {
		rest := target[len("file://"):]
		switch {
		case len(rest) >= 3 && rest[0] == '/' && isDriveLetter(rest[1]) && rest[2] == ':':
			rest = rest[1:]
		case strings.HasPrefix(rest, "/"), len(rest) >= 2 && isDriveLetter(rest[0]) && rest[1] == ':':
		default:
			rest = "//" + rest
		}
		return toSlash(unescape(rest))
	}
	return toSlash(unescape(target))
}

func (Windows) IsAbs(p string) bool {
	p = toSlash(p)
	vol, rest := splitVolume(p)
	if strings.HasPrefix(vol, "//") {
		return true
	}
	return strings.HasPrefix(rest, "/")
}

func (Windows) Clean(p string) string {
	vol, rest := splitVolume(toSlash(p))
	if rest == "" {
		if vol != "" {
			return vol + "/"
		}
		return "."
	}
	return vol + path.Clean(rest)
}

func (w Windows) Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e != "" {
			parts = append(parts, toSlash(e))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return w.Clean(strings.Join(parts, "/"))
}

func (Windows) Dir(p string) string {
	vol, rest := splitVolume(toSlash(p))
	return vol + path.Dir(rest)
}

func (Windows) Rel(base, target string) (string, error) {
	bv, br := splitVolume(toSlash(base))
	tv, tr := splitVolume(toSlash(target))
	if !strings.EqualFold(bv, tv) {
		return "", fmt.Errorf("can't make %s relative to %s", target, base)
	}
	return relSlash(br, tr, true)
}

func (w Windows) Within(root, p string) bool { return within(w, root, p) }

func (Windows) CollisionKey(name string) string { return strings.ToLower(name) }

func (Windows) Native(p string) string { return filepath.FromSlash(p) }

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// splitVolume separates a drive letter ("C:") or UNC prefix ("//host/share")
// from the rest of a slash path.
func splitVolume(p string) (string, string) {
	if len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':' {
		return p[:2], p[2:]
	}
	if strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "///") {
		rest := p[2:]
		host := strings.Index(rest, "/")
		if host < 0 {
			return p, ""
		}
		share := strings.Index(rest[host+1:], "/")
		if share < 0 {
			return p, ""
		}
		cut := 2 + host + 1 + share
		return p[:cut], p[cut:]
	}
	return "", p
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
