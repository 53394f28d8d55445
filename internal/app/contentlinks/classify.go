package contentlinks

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
)

type ValiditySplit struct {
	Valid   LinkSet
	Invalid LinkSet
}

type ExistenceSplit struct {
	Existing    LinkSet
	NonExisting LinkSet
}

type CopySplit struct {
	Copyable            LinkSet
	NonCopyableRelative LinkSet
	NonCopyableAbsolute LinkSet
}

type Classification struct {
	All     LinkSet
	Ignored LinkSet
	ValiditySplit
	ExistenceSplit
	CopySplit
}

type Classifier struct {
	Syntax pathsyntax.Syntax
	// Exists reports whether a resolved slash path is present. Nil checks the
	// host file system.
	Exists func(path string) bool
	// Ignore holds doublestar patterns matched against decoded link paths.
	Ignore []string
}

// Classify extracts the local links of content, which lives at contentPath,
// and partitions them. Invalid links never exist, so they land in
// NonExisting as well as Invalid. Only existing links are tested for
// copyability.
func (c Classifier) Classify(format Format, content, contentPath, copyableRoot string) Classification {
	all := Extract(format, content, c.Syntax)
	kept, ignored := c.splitIgnored(all)

	validity := c.SplitValid(kept)
	existence := c.SplitExisting(contentPath, kept)
	copying := c.SplitCopyable(contentPath, copyableRoot, existence.Existing)
	return Classification{
		All:            kept,
		Ignored:        ignored,
		ValiditySplit:  validity,
		ExistenceSplit: existence,
		CopySplit:      copying,
	}
}

// Missing returns the valid links whose target does not exist.
func (c Classification) Missing() LinkSet {
	return c.NonExisting.Filter(func(l Link) bool { return !c.Invalid.Has(l.Raw) })
}

func (c Classifier) splitIgnored(links LinkSet) (LinkSet, LinkSet) {
	if len(c.Ignore) == 0 {
		return links, NewLinkSet()
	}
	match := func(l Link) bool {
		for _, pattern := range c.Ignore {
			if ok, err := doublestar.Match(pattern, l.Path); err == nil && ok {
				return true
			}
		}
		return false
	}
	return links.Filter(func(l Link) bool { return !match(l) }), links.Filter(match)
}

func (c Classifier) SplitValid(links LinkSet) ValiditySplit {
	return ValiditySplit{
		Valid:   links.Filter(func(l Link) bool { return c.Syntax.Valid(l.Path) }),
		Invalid: links.Filter(func(l Link) bool { return !c.Syntax.Valid(l.Path) }),
	}
}

func (c Classifier) SplitExisting(contentPath string, links LinkSet) ExistenceSplit {
	exists := map[string]bool{}
	for _, l := range links.Links() {
		exists[l.Raw] = c.exists(c.Resolve(contentPath, l))
	}
	return ExistenceSplit{
		Existing:    links.Filter(func(l Link) bool { return exists[l.Raw] }),
		NonExisting: links.Filter(func(l Link) bool { return !exists[l.Raw] }),
	}
}

// SplitCopyable separates links whose target lies inside root from those
// that must stay where they are.
func (c Classifier) SplitCopyable(contentPath, root string, links LinkSet) CopySplit {
	inside := func(l Link) bool {
		return c.Syntax.Within(c.Syntax.Clean(root), c.Resolve(contentPath, l))
	}
	return CopySplit{
		Copyable: links.Filter(inside),
		NonCopyableRelative: links.Filter(func(l Link) bool {
			return !inside(l) && !c.Syntax.IsAbs(l.Path)
		}),
		NonCopyableAbsolute: links.Filter(func(l Link) bool {
			return !inside(l) && c.Syntax.IsAbs(l.Path)
		}),
	}
}

// Resolve returns the target of l: absolute paths as they are, relative
// ones against the directory of contentPath.
func (c Classifier) Resolve(contentPath string, l Link) string {
	if c.Syntax.IsAbs(l.Path) {
		return c.Syntax.Clean(l.Path)
	}
	return c.Syntax.Join(c.Syntax.Dir(contentPath), l.Path)
}

func (c Classifier) exists(p string) bool {
	if !c.Syntax.Valid(p) {
		return false
	}
	if c.Exists != nil {
		return c.Exists(p)
	}
	_, err := os.Stat(c.Syntax.Native(p))
	return err == nil
}
