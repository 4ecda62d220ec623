// Package modindex implements the persistent, folder-case-normalised cache
// of every mod's file list. Reads are cached in memory keyed by (path,
// mtime); writes are atomic via temp-file + rename.
package modindex

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"modcore/internal/scanner"
)

const header = "#modindex v2\n"

// MaxRebuildWorkers bounds the scan worker pool used by Rebuild.
const MaxRebuildWorkers = 20

// ModFileSet is one mod's per-key scanned file lists.
type ModFileSet struct {
	Normal map[string]string // key -> display
	Root   map[string]string // key -> display
}

// Index maps mod name (including the sentinel "[Overwrite]") to its file
// sets.
type Index map[string]ModFileSet

// Cache is an in-memory (path, mtime)-keyed reuse of the last index read or
// written. The zero value is ready to use; callers should own one Cache per
// profile context rather than relying on a process-global singleton.
type Cache struct {
	mu    sync.Mutex
	path  string
	mtime int64
	data  Index
}

// NewCache returns a ready Cache.
func NewCache() *Cache { return &Cache{} }

func (c *Cache) get(path string, mtime int64) (Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == path && c.mtime == mtime && c.data != nil {
		return c.data, true
	}
	return nil, false
}

func (c *Cache) set(path string, mtime int64, data Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path, c.mtime, c.data = path, mtime, data
}

// Read loads the index from path. It returns (nil, nil), not an error, if
// the file is absent or its header does not match, signalling to the caller
// that a full Rebuild is required. A successful read is cached by (path,
// mtime); a second Read within the same mtime is free.
func Read(path string, cache *Cache) (Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil
	}
	mtime := info.ModTime().UnixNano()

	if cache != nil {
		if data, ok := cache.get(path, mtime); ok {
			return data, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadString('\n')
	if err != nil || headerLine != header {
		return nil, nil
	}

	idx := make(Index)
	scanLine := bufio.NewScanner(reader)
	scanLine.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanLine.Scan() {
		line := scanLine.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		modName, key, display, kind := parts[0], parts[1], parts[2], parts[3]
		set, ok := idx[modName]
		if !ok {
			set = ModFileSet{Normal: map[string]string{}, Root: map[string]string{}}
		}
		if kind == "r" {
			set.Root[key] = display
		} else {
			set.Normal[key] = display
		}
		idx[modName] = set
	}

	if cache != nil {
		cache.set(path, mtime, idx)
	}
	return idx, nil
}

// write normalises folder-case across the whole index and persists it
// atomically (temp file + rename), then refreshes cache to match exactly
// what was written.
func write(path string, idx Index, cache *Cache) error {
	normalizeFolderCases(idx, false)
	normalizeFolderCases(idx, true)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	modNames := make([]string, 0, len(idx))
	for name := range idx {
		modNames = append(modNames, name)
	}
	sort.Strings(modNames)

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing index header: %w", err)
	}
	for _, modName := range modNames {
		set := idx[modName]
		writeSorted(w, modName, set.Normal, "n")
		writeSorted(w, modName, set.Root, "r")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flushing index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming index into place: %w", err)
	}

	if cache != nil {
		if info, err := os.Stat(path); err == nil {
			cache.set(path, info.ModTime().UnixNano(), idx)
		}
	}
	return nil
}

func writeSorted(w *bufio.Writer, modName string, m map[string]string, kind string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", modName, key, m[key], kind)
	}
}

// Update reads the existing index (if any), replaces mod's entry, and
// writes the result back atomically.
func Update(path, mod string, normal, root map[string]string, cache *Cache) error {
	idx, err := Read(path, cache)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = make(Index)
	}
	idx[mod] = ModFileSet{Normal: normal, Root: root}
	return write(path, idx, cache)
}

// Remove deletes the named mods from the index, rewriting it atomically. A
// no-op if the index is absent or none of names are present.
func Remove(path string, names []string, cache *Cache) error {
	idx, err := Read(path, cache)
	if err != nil {
		return err
	}
	if idx == nil {
		return nil
	}
	changed := false
	for _, name := range names {
		if _, ok := idx[name]; ok {
			delete(idx, name)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return write(path, idx, cache)
}

// OverwriteName is the sentinel mod name used for the per-profile overwrite
// directory.
const OverwriteName = "[Overwrite]"

// RebuildConfig carries the scan configuration and per-mod overrides needed
// to fully rescan the staging root.
type RebuildConfig struct {
	StripPrefixes       map[string]bool
	PerModStripPrefixes map[string][]string
	AllowedExtensions   map[string]bool
	RootDeployFolders   map[string]bool
}

// Rebuild scans every subdirectory of stagingRoot plus the overwrite
// directory in parallel (bounded by MaxRebuildWorkers) and writes the
// complete index. This is the slow path, reserved for an explicit refresh
// or for recovering from a missing/corrupt index.
func Rebuild(path, stagingRoot, overwriteDir string, cfg RebuildConfig, cache *Cache) error {
	type target struct {
		name string
		dir  string
	}

	var targets []target
	entries, err := os.ReadDir(stagingRoot)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				targets = append(targets, target{name: e.Name(), dir: filepath.Join(stagingRoot, e.Name())})
			}
		}
	}
	targets = append(targets, target{name: OverwriteName, dir: overwriteDir})

	results := make([]scanner.Result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(MaxRebuildWorkers)

	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = scanner.Scan(t.name, t.dir, scanConfigFor(t.name, cfg))
			return nil
		})
	}
	_ = g.Wait()

	idx := make(Index, len(results))
	for _, r := range results {
		idx[r.ModName] = ModFileSet{Normal: r.Normal, Root: r.Root}
	}

	return write(path, idx, cache)
}

func scanConfigFor(modName string, cfg RebuildConfig) scanner.Config {
	strip := cfg.StripPrefixes
	var pathPrefixes []string
	if modStrip, ok := cfg.PerModStripPrefixes[modName]; ok && len(modStrip) > 0 {
		merged := make(map[string]bool, len(strip))
		for k := range strip {
			merged[k] = true
		}
		for _, s := range modStrip {
			if strings.Contains(s, "/") {
				pathPrefixes = append(pathPrefixes, s)
			} else {
				merged[strings.ToLower(s)] = true
			}
		}
		strip = merged
	}
	return scanner.Config{
		StripPrefixes:     strip,
		AllowedExtensions: cfg.AllowedExtensions,
		RootDeployFolders: cfg.RootDeployFolders,
		StripPathPrefixes: pathPrefixes,
	}
}

// pickCanonicalSegment chooses the folder-name variant with more uppercase
// characters; ties prefer the lexicographically smaller variant.
func pickCanonicalSegment(a, b string) string {
	if countUpper(a) > countUpper(b) {
		return a
	}
	if countUpper(b) > countUpper(a) {
		return b
	}
	if a <= b {
		return a
	}
	return b
}

func countUpper(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}

// normalizeFolderCases rewrites every display value in idx so that folder
// segments use one canonical casing across the entire index. Filenames (the
// last segment) are never normalised.
func normalizeFolderCases(idx Index, rootSet bool) {
	canonical := map[string]string{}
	pick := func(m map[string]string) {
		for _, display := range m {
			parts := strings.Split(display, "/")
			for _, seg := range parts[:len(parts)-1] {
				lower := strings.ToLower(seg)
				if existing, ok := canonical[lower]; ok {
					canonical[lower] = pickCanonicalSegment(existing, seg)
				} else {
					canonical[lower] = seg
				}
			}
		}
	}
	for _, set := range idx {
		if rootSet {
			pick(set.Root)
		} else {
			pick(set.Normal)
		}
	}
	if len(canonical) == 0 {
		return
	}
	rewrite := func(m map[string]string) {
		for key, display := range m {
			parts := strings.Split(display, "/")
			changed := false
			for i := 0; i < len(parts)-1; i++ {
				if c, ok := canonical[strings.ToLower(parts[i])]; ok && c != parts[i] {
					parts[i] = c
					changed = true
				}
			}
			if changed {
				m[key] = strings.Join(parts, "/")
			}
		}
	}
	for _, set := range idx {
		if rootSet {
			rewrite(set.Root)
		} else {
			rewrite(set.Normal)
		}
	}
}
