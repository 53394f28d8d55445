package planner

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
)

const DefaultMaxAttempts = 1000

var ErrNameExhausted = errors.New("no free name left")

// UsedNames is the registry of output names already handed out during one
// export run. Claim is safe for concurrent use.
type UsedNames struct {
	mu          sync.Mutex
	keys        map[string]struct{}
	key         func(string) string
	splitExt    bool
	maxAttempts int
}

// NewFileNames returns a registry that suffixes names before their extension.
func NewFileNames(syntax pathsyntax.Syntax, maxAttempts int) *UsedNames {
	return newUsedNames(syntax, maxAttempts, true)
}

// NewFolderNames returns a registry that suffixes the whole name.
func NewFolderNames(syntax pathsyntax.Syntax, maxAttempts int) *UsedNames {
	return newUsedNames(syntax, maxAttempts, false)
}

func newUsedNames(syntax pathsyntax.Syntax, maxAttempts int, splitExt bool) *UsedNames {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &UsedNames{
		keys:        map[string]struct{}{},
		key:         syntax.CollisionKey,
		splitExt:    splitExt,
		maxAttempts: maxAttempts,
	}
}

// Claim reserves candidate, or the first free "<stem>-N<ext>" when it is
// taken, and returns the reserved name.
func (u *UsedNames) Claim(candidate string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	stem, ext := candidate, ""
	if u.splitExt {
		ext = path.Ext(candidate)
		if ext == candidate || strings.HasSuffix(strings.TrimSuffix(candidate, ext), "/") {
			ext = ""
		}
		stem = strings.TrimSuffix(candidate, ext)
	}

	name := candidate
	for n := 1; ; n++ {
		k := u.key(name)
		if _, taken := u.keys[k]; !taken {
			u.keys[k] = struct{}{}
			return name, nil
		}
		if n > u.maxAttempts {
			return "", fmt.Errorf("%w for %q after %d attempts", ErrNameExhausted, candidate, u.maxAttempts)
		}
		name = stem + "-" + strconv.Itoa(n) + ext
	}
}

func (u *UsedNames) Has(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.keys[u.key(name)]
	return ok
}

func (u *UsedNames) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.keys)
}
