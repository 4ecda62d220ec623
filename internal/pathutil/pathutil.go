// Package pathutil implements the case-folded path keys and case-insensitive
// filesystem resolution shared by every other component: a relative path is
// represented both as a canonical display form (forward slashes, preserved
// case) and as a key (the display form lowercased).
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Key lowercases display and normalises path separators to "/". Every
// dictionary keyed by path in this module uses the result of Key, never the
// display form itself.
func Key(display string) string {
	return strings.ToLower(ToSlash(display))
}

// ToSlash normalises a path to use "/" separators only. Unlike
// filepath.ToSlash it also folds backslashes on non-Windows hosts, because
// mod archives routinely carry Windows-style relative paths regardless of
// the host running the deployer.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// DirListing caches each visited directory's entries keyed by lowercase
// name, so repeated ResolveNoCase calls against the same directory only
// read it once. The zero value is ready to use.
type DirListing struct {
	cache map[string]map[string]string // absolute dir -> {lower name: real name}
}

// NewDirListing returns a ready-to-use per-directory entry cache.
func NewDirListing() *DirListing {
	return &DirListing{cache: make(map[string]map[string]string)}
}

func (c *DirListing) listing(dir string) map[string]string {
	if l, ok := c.cache[dir]; ok {
		return l
	}
	if c.cache == nil {
		c.cache = make(map[string]map[string]string)
	}
	entries, err := os.ReadDir(dir)
	l := make(map[string]string, len(entries))
	if err == nil {
		for _, e := range entries {
			l[strings.ToLower(e.Name())] = e.Name()
		}
	}
	c.cache[dir] = l
	return l
}

// ResolveNoCase walks each "/"-separated segment of rel under root, matching
// every segment case-insensitively against real directory entries. It
// returns the real on-disk path iff a regular file exists at the end; it
// returns "", false for any intermediate miss or if the final entry is not a
// file. cache may be nil, in which case a private one-shot cache is used.
func ResolveNoCase(root, rel string, cache *DirListing) (string, bool) {
	if cache == nil {
		cache = NewDirListing()
	}
	current := root
	for _, part := range strings.Split(ToSlash(rel), "/") {
		if part == "" {
			continue
		}
		listing := cache.listing(current)
		real, ok := listing[strings.ToLower(part)]
		if !ok {
			return "", false
		}
		current = filepath.Join(current, real)
	}
	info, err := os.Stat(current)
	if err != nil || info.IsDir() {
		return "", false
	}
	return current, true
}

// IsUnder reports whether p resolves (following symlinks) to a location at
// or under root. Callers must treat a false result as "skip this operation,
// log it" rather than as an error.
func IsUnder(p, root string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		// root itself may not exist yet (e.g. a destination about to be
		// created); fall back to the lexical absolute form.
		resolvedRoot = absRoot
	}
	resolvedP, err := filepath.EvalSymlinks(absP)
	if err != nil {
		resolvedP = absP
	}
	rel, err := filepath.Rel(resolvedRoot, resolvedP)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
