// Package filemap merges the enabled mods' indexed file lists into a single
// winner-takes-all filemap.txt (plus filemap_root.txt for root-deploy
// files), and classifies each mod's conflict status for the UI's dot
// colours.
package filemap

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"

	"modcore/internal/modindex"
	"modcore/internal/modlist"
)

// Conflict status, mirroring the dot colours shown against each mod.
type Conflict int

const (
	ConflictNone    Conflict = iota // no conflicts at all
	ConflictWins                    // wins some/all conflicts, loses none (green)
	ConflictLoses                   // loses some conflicts, wins none (red)
	ConflictPartial                 // wins some, loses some (yellow)
	ConflictFull                    // every file overridden, nothing reaches the game (white)
)

func (c Conflict) String() string {
	switch c {
	case ConflictWins:
		return "wins"
	case ConflictLoses:
		return "loses"
	case ConflictPartial:
		return "partial"
	case ConflictFull:
		return "full"
	default:
		return "none"
	}
}

// OverwriteName is the sentinel mod name for the per-profile overwrite
// folder, always highest priority.
const OverwriteName = modindex.OverwriteName

// RootFolderName is the sentinel modlist entry whose files deploy straight
// to the game root rather than under the mod data path; it takes no part
// in the merge itself (handled instead by each mod's root file set).
const RootFolderName = "[Root_Folder]"

// Entry is one resolved filemap line: the winning mod's display path and
// the mod that provided it.
type Entry struct {
	Path string
	Mod  string
}

// Result is the full output of Build.
type Result struct {
	Count         int
	Conflicts     map[string]Conflict
	Overrides     map[string]map[string]bool // mod -> set of mods it overrides
	OverriddenBy  map[string]map[string]bool // mod -> set of mods that override it
	PriorityOrder []string
}

// Build reads modlistPath, merges the enabled mods' file lists (read from
// the mod index at indexPath, rebuilding it via rebuild if missing or
// corrupt), and writes outputPath (filemap.txt) plus its sibling
// filemap_root.txt. Priority runs lowest-to-highest except the overwrite
// folder, which always wins.
func Build(modlistPath, indexPath string, rebuild func() (modindex.Index, error), outputPath string, cache *modindex.Cache) (Result, error) {
	entries, err := modlist.Read(modlistPath)
	if err != nil {
		return Result{}, err
	}

	var enabled []modlist.Entry
	for _, e := range entries {
		if !e.IsSeparator && e.Enabled {
			enabled = append(enabled, e)
		}
	}
	// modlist index 0 = highest priority; reverse to walk low -> high.
	priorityOrder := make([]string, 0, len(enabled)+1)
	for i := len(enabled) - 1; i >= 0; i-- {
		if enabled[i].Name != RootFolderName {
			priorityOrder = append(priorityOrder, enabled[i].Name)
		}
	}
	priorityOrder = append(priorityOrder, OverwriteName)

	idx, err := modindex.Read(indexPath, cache)
	if err != nil {
		return Result{}, err
	}
	if idx == nil {
		idx, err = rebuild()
		if err != nil {
			return Result{}, err
		}
	}
	if idx == nil {
		idx = modindex.Index{}
	}

	raw := map[string]map[string]string{}
	rawRoot := map[string]map[string]string{}
	for _, name := range priorityOrder {
		set, ok := idx[name]
		if !ok {
			continue
		}
		if len(set.Normal) > 0 {
			raw[name] = set.Normal
		}
		if len(set.Root) > 0 {
			rawRoot[name] = set.Root
		}
	}

	winner := map[string]string{}
	modFiles := map[string]map[string]bool{}
	for _, name := range priorityOrder {
		files := raw[name]
		if len(files) == 0 {
			continue
		}
		keys := make(map[string]bool, len(files))
		for k := range files {
			keys[k] = true
		}
		modFiles[name] = keys
		for k := range files {
			winner[k] = name
		}
	}

	filemapEntries := map[string]Entry{}
	for key, mod := range winner {
		display := raw[mod][key]
		if display == "" {
			display = key
		}
		filemapEntries[key] = Entry{Path: display, Mod: mod}
	}

	overrides := map[string]map[string]bool{}
	overriddenBy := map[string]map[string]bool{}
	for _, name := range priorityOrder {
		overrides[name] = map[string]bool{}
		overriddenBy[name] = map[string]bool{}
	}
	currentHolder := map[string]string{}
	for _, name := range priorityOrder {
		for key := range modFiles[name] {
			if loser, ok := currentHolder[key]; ok {
				overrides[name][loser] = true
				overriddenBy[loser][name] = true
			}
			currentHolder[key] = name
		}
	}

	conflicts := map[string]Conflict{}
	for _, name := range priorityOrder {
		keys := modFiles[name]
		hasWins := len(overrides[name]) > 0
		hasLoses := len(overriddenBy[name]) > 0
		switch {
		case len(keys) == 0 || (!hasWins && !hasLoses):
			conflicts[name] = ConflictNone
		case hasLoses && allOverridden(keys, filemapEntries, name):
			conflicts[name] = ConflictFull
		case hasWins && !hasLoses:
			conflicts[name] = ConflictWins
		case hasLoses && !hasWins:
			conflicts[name] = ConflictLoses
		default:
			conflicts[name] = ConflictPartial
		}
	}

	count, err := writeFilemap(outputPath, filemapEntries)
	if err != nil {
		return Result{}, err
	}

	rootCount, err := writeRootFilemap(outputPath, priorityOrder, rawRoot)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Count:         count + rootCount,
		Conflicts:     conflicts,
		Overrides:     overrides,
		OverriddenBy:  overriddenBy,
		PriorityOrder: priorityOrder,
	}, nil
}

func allOverridden(keys map[string]bool, filemapEntries map[string]Entry, mod string) bool {
	for k := range keys {
		if filemapEntries[k].Mod == mod {
			return false
		}
	}
	return true
}

func writeFilemap(outputPath string, entries map[string]Entry) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, k := range keys {
		e := entries[k]
		if _, err := w.WriteString(e.Path + "\t" + e.Mod + "\n"); err != nil {
			return 0, err
		}
	}
	return len(keys), w.Flush()
}

func rootFilemapPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), "filemap_root.txt")
}

func writeRootFilemap(outputPath string, priorityOrder []string, rawRoot map[string]map[string]string) (int, error) {
	rootPath := rootFilemapPath(outputPath)
	if len(rawRoot) == 0 {
		if _, err := os.Stat(rootPath); err == nil {
			return 0, os.Remove(rootPath)
		}
		return 0, nil
	}

	winner := map[string]string{}
	for _, name := range priorityOrder {
		files := rawRoot[name]
		for key := range files {
			winner[key] = name
		}
	}
	entries := map[string]Entry{}
	for key, mod := range winner {
		display := rawRoot[mod][key]
		if display == "" {
			display = key
		}
		entries[key] = Entry{Path: display, Mod: mod}
	}
	return writeFilemap(rootPath, entries)
}
