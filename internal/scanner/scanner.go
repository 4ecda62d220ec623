// Package scanner walks a single mod directory and produces the two
// {lowercase path -> original path} maps (normal files, root-deploy files)
// consumed by the mod index. Scan is a pure function, safe to call
// concurrently from a worker pool; it touches no shared state.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excludeNames lists per-mod metadata filenames that are never real game
// files and must never reach a filemap.
var excludeNames = map[string]bool{
	"meta.ini": true,
}

// Config bundles the strip/filter rules a game declares (see
// internal/gamecfg) plus any strip prefixes specific to one mod.
type Config struct {
	// StripPrefixes are lowercase top-level folder names stripped from the
	// front of every relative path, repeatedly, until no more match.
	StripPrefixes map[string]bool
	// AllowedExtensions, when non-empty, restricts the normal-file result to
	// files whose lowercase extension (with leading dot) is a member.
	AllowedExtensions map[string]bool
	// RootDeployFolders are lowercase top-level folder names (checked after
	// strip-prefix processing) whose files are routed to the root map and
	// bypass AllowedExtensions.
	RootDeployFolders map[string]bool
	// StripPathPrefixes are full relative-path prefixes, specific to one
	// mod, stripped once (longest match wins) before StripPrefixes is
	// applied. Case-insensitive.
	StripPathPrefixes []string
}

// Result is one mod's scanned file sets.
type Result struct {
	ModName string
	Normal  map[string]string // key -> display
	Root    map[string]string // key -> display
}

// Scan walks dir (a mod folder, or the overwrite folder) once and returns
// its file sets under modName. Symlinks are never followed. A missing or
// unreadable dir yields empty maps, not an error; scanning continues past
// unreadable subdirectories the same way.
func Scan(modName, dir string, cfg Config) Result {
	result := Result{ModName: modName, Normal: map[string]string{}, Root: map[string]string{}}

	sortedPathPrefixes := sortedPrefixesByLength(cfg.StripPathPrefixes)

	type stackEntry struct {
		prefix string
		dir    string
	}
	stack := []stackEntry{{prefix: "", dir: dir}}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dirEntries, err := os.ReadDir(entry.dir)
		if err != nil {
			continue
		}
		for _, de := range dirEntries {
			if de.Type()&os.ModeSymlink != 0 {
				continue
			}
			if de.IsDir() {
				stack = append(stack, stackEntry{
					prefix: entry.prefix + de.Name() + "/",
					dir:    filepath.Join(entry.dir, de.Name()),
				})
				continue
			}
			if !de.Type().IsRegular() {
				continue
			}
			if excludeNames[de.Name()] {
				continue
			}

			relStr := entry.prefix + de.Name()

			if len(sortedPathPrefixes) > 0 {
				relLower := strings.ToLower(relStr)
				for _, p := range sortedPathPrefixes {
					if relLower == p.lower || strings.HasPrefix(relLower, p.lower+"/") {
						relStr = strings.TrimPrefix(relStr[p.length:], "/")
						break
					}
				}
			}

			if len(cfg.StripPrefixes) > 0 {
				for strings.Contains(relStr, "/") {
					firstSeg, remainder, _ := strings.Cut(relStr, "/")
					if !cfg.StripPrefixes[strings.ToLower(firstSeg)] {
						break
					}
					relStr = remainder
				}
			}

			if len(cfg.RootDeployFolders) > 0 && strings.Contains(relStr, "/") {
				topSeg, _, _ := strings.Cut(relStr, "/")
				if cfg.RootDeployFolders[strings.ToLower(topSeg)] {
					result.Root[strings.ToLower(relStr)] = relStr
					continue
				}
			}

			if len(cfg.AllowedExtensions) > 0 {
				ext := strings.ToLower(filepath.Ext(de.Name()))
				if !cfg.AllowedExtensions[ext] {
					continue
				}
			}

			result.Normal[strings.ToLower(relStr)] = relStr
		}
	}

	return result
}

type pathPrefix struct {
	lower  string
	length int
}

// sortedPrefixesByLength orders prefixes longest first, so the first
// match is always the longest one.
func sortedPrefixesByLength(prefixes []string) []pathPrefix {
	out := make([]pathPrefix, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, pathPrefix{lower: strings.ToLower(p), length: len(p)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].length > out[j].length })
	return out
}
