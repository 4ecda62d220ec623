// Package deploy transfers mod files from staging into a game's install
// directory and back out again. Two deployment shapes are supported:
//
//   - data-backup: bulk move-to-core of the vanilla directory, then
//     link-in from filemap.txt, then gap-fill from the core backup
//     (BackupDataCore, DeployFilemap, DeployCore / RestoreDataBackup).
//   - root-overlay: per-file backup of anything a mod overwrites at the
//     game's root, with a deployment log recording what was placed so
//     restore can undo it file-by-file (DeployRootOverlay /
//     RestoreRootOverlay).
package deploy

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modcore/internal/pathutil"
)

// LinkMode selects how a single file is transferred from its staging
// location into the deploy directory.
type LinkMode int

const (
	Hardlink LinkMode = iota
	Symlink
	Copy
)

// OverwriteName is the sentinel mod name for the per-profile overwrite
// folder in filemap.txt.
const OverwriteName = "[Overwrite]"

// ProgressFunc receives advisory (done, total) counters for a named phase.
// Reporting never affects the outcome of an operation; nil disables it.
type ProgressFunc func(done, total int, phase string)

// progressEvery is how many files are processed between progress reports.
const progressEvery = 100

func (p ProgressFunc) report(done, total int, phase string) {
	if p != nil && (done%progressEvery == 0 || done == total) {
		p(done, total, phase)
	}
}

// Transfer copies/links a single file from src to dst using mode, creating
// dst's parent directory as needed.
func Transfer(src, dst string, mode LinkMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	switch mode {
	case Hardlink:
		return os.Link(src, dst)
	case Symlink:
		return os.Symlink(src, dst)
	default:
		return copyFile(src, dst)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// defaultCoreDir returns the sibling backup directory for deployDir, e.g.
// Data/ -> Data_Core/.
func defaultCoreDir(deployDir string) string {
	return filepath.Join(filepath.Dir(deployDir), filepath.Base(deployDir)+"_Core")
}

func listFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func clearDir(dir string) (int, error) {
	removed := 0
	var files []string
	var dirs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return removed, err
		}
		removed++
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		os.Remove(d) // best effort, only succeeds when empty
	}
	return removed, nil
}

// BackupDataCore moves every file out of deployDir into coreDir (the
// vanilla backup), clearing deployDir afterwards. If coreDir already
// exists it is wiped first so a backup always starts clean. An empty
// deployDir still results in an (empty) coreDir so restore never reports
// "nothing to restore".
func BackupDataCore(deployDir, coreDir string) (int, error) {
	if coreDir == "" {
		coreDir = defaultCoreDir(deployDir)
	}
	if _, err := os.Stat(coreDir); err == nil {
		if err := os.RemoveAll(coreDir); err != nil {
			return 0, err
		}
	}

	files, err := listFiles(deployDir)
	if err != nil {
		files = nil
	}
	if len(files) == 0 {
		return 0, os.MkdirAll(coreDir, 0o755)
	}

	for _, src := range files {
		rel, err := filepath.Rel(deployDir, src)
		if err != nil {
			return 0, err
		}
		dst := filepath.Join(coreDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return 0, err
		}
		if err := os.Rename(src, dst); err != nil {
			return 0, err
		}
	}
	if _, err := clearDir(deployDir); err != nil {
		return 0, err
	}
	return len(files), nil
}

// ResolveConfig carries the strip-prefix context needed to locate a
// filemap-listed file on disk when its leading folder was stripped during
// indexing.
type ResolveConfig struct {
	StripPrefixes       []string
	PerModStripPrefixes map[string][]string
}

type resolveCaches struct {
	listings map[string]*pathutil.DirListing
}

func newResolveCaches() *resolveCaches {
	return &resolveCaches{listings: map[string]*pathutil.DirListing{}}
}

func (c *resolveCaches) listingFor(dir string) *pathutil.DirListing {
	if l, ok := c.listings[dir]; ok {
		return l
	}
	l := pathutil.NewDirListing()
	c.listings[dir] = l
	return l
}

func (c *resolveCaches) resolve(modRoot, rel string) (string, bool) {
	return pathutil.ResolveNoCase(modRoot, rel, c.listingFor(modRoot))
}

// resolveSource finds relStr on disk under modRoot, trying the exact path,
// then case-insensitive resolution, then re-adding stripped prefixes (both
// global and per-mod) the filemap removed during indexing.
func resolveSource(modRoot, modName, relStr string, cfg ResolveConfig, caches *resolveCaches) (string, bool) {
	direct := filepath.Join(modRoot, filepath.FromSlash(relStr))
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, true
	}
	if src, ok := caches.resolve(modRoot, relStr); ok {
		return src, true
	}

	if len(cfg.StripPrefixes) > 0 {
		prefixes := append([]string(nil), cfg.StripPrefixes...)
		sort.Strings(prefixes)
		for _, p1 := range prefixes {
			if src, ok := caches.resolve(modRoot, p1+"/"+relStr); ok {
				return src, true
			}
			for _, p2 := range prefixes {
				if src, ok := caches.resolve(modRoot, p1+"/"+p2+"/"+relStr); ok {
					return src, true
				}
			}
		}
	}

	if modName != OverwriteName {
		if modStrip, ok := cfg.PerModStripPrefixes[modName]; ok {
			var pathPrefixes, segments []string
			for _, s := range modStrip {
				if strings.Contains(s, "/") {
					pathPrefixes = append(pathPrefixes, s)
				} else {
					segments = append(segments, s)
				}
			}
			for _, p := range pathPrefixes {
				if src, ok := caches.resolve(modRoot, p+"/"+relStr); ok {
					return src, true
				}
			}
			prefixPath := ""
			for _, seg := range segments {
				prefixPath += seg + "/"
				if src, ok := caches.resolve(modRoot, prefixPath+relStr); ok {
					return src, true
				}
			}
		}
	}

	return "", false
}

// DeployFilemap reads filemapPath and transfers every listed file into
// deployDir, resolving each source relative to stagingRoot (or overwriteDir
// for the sentinel mod). Returns the number of files transferred and the
// set of lowercased rel paths successfully placed; pass it to DeployCore
// so gap-filling skips files a mod already provided.
func DeployFilemap(filemapPath, deployDir, stagingRoot, overwriteDir string, mode LinkMode, cfg ResolveConfig, logf func(string), progress ProgressFunc) (int, map[string]bool, error) {
	if logf == nil {
		logf = func(string) {}
	}
	caches := newResolveCaches()

	lines, err := readTabLines(filemapPath)
	if err != nil {
		return 0, nil, err
	}

	placed := map[string]bool{}
	seen := map[string]bool{}
	linked := 0

	for i, line := range lines {
		progress.report(i+1, len(lines), "deploy")
		relStr, modName := line.path, line.mod
		relLower := strings.ToLower(relStr)
		if seen[relLower] {
			continue
		}
		seen[relLower] = true

		modRoot := stagingRoot
		if modName == OverwriteName {
			modRoot = overwriteDir
		} else {
			modRoot = filepath.Join(stagingRoot, modName)
		}

		src, ok := resolveSource(modRoot, modName, relStr, cfg, caches)
		if !ok {
			logf(fmt.Sprintf("WARN: source not found: %s (%s)", relStr, modName))
			continue
		}

		dst := filepath.Join(deployDir, filepath.FromSlash(relStr))
		if err := Transfer(src, dst, mode); err != nil {
			logf(fmt.Sprintf("WARN: could not transfer %s: %v", relStr, err))
			continue
		}
		linked++
		placed[relLower] = true
	}

	return linked, placed, nil
}

// DeployCore fills every path under coreDir not already present in
// alreadyPlaced into deployDir, restoring whatever a mod did not override.
func DeployCore(deployDir, coreDir string, alreadyPlaced map[string]bool, mode LinkMode, logf func(string), progress ProgressFunc) (int, error) {
	if logf == nil {
		logf = func(string) {}
	}
	if coreDir == "" {
		coreDir = defaultCoreDir(deployDir)
	}
	if info, err := os.Stat(coreDir); err != nil || !info.IsDir() {
		return 0, nil
	}

	files, err := listFiles(coreDir)
	if err != nil {
		return 0, err
	}

	linked := 0
	for i, src := range files {
		progress.report(i+1, len(files), "core")
		rel, err := filepath.Rel(coreDir, src)
		if err != nil {
			return linked, err
		}
		relLower := strings.ToLower(pathutil.ToSlash(rel))
		if alreadyPlaced[relLower] {
			continue
		}
		dst := filepath.Join(deployDir, rel)
		if err := Transfer(src, dst, mode); err != nil {
			logf(fmt.Sprintf("WARN: could not transfer %s: %v", rel, err))
			continue
		}
		linked++
	}
	return linked, nil
}

// RestoreDataBackup undoes a data-backup deploy: rescues any runtime-created
// file under deployDir into overwriteDir (when non-empty), clears deployDir,
// moves coreDir's contents back in, and removes coreDir. knownModFiles is
// every lowercased rel path known to any mod in the index, across every
// profile, used alongside filemap.txt to recognise mod files that should
// never be rescued. onRescue, when non-nil, is called once after any files
// are rescued with the complete current overwrite/ file list (key -> display)
// so the caller can update the Mod Index's [Overwrite] entry in place.
// Returns the number of files restored. If coreDir is absent, "nothing to
// restore" is logged, deployDir is left untouched, and 0 is returned.
func RestoreDataBackup(deployDir, coreDir, overwriteDir, filemapPath string, knownModFiles map[string]bool, logf func(string), onRescue func(overwriteFiles map[string]string) error) (int, error) {
	if logf == nil {
		logf = func(string) {}
	}
	if coreDir == "" {
		coreDir = defaultCoreDir(deployDir)
	}
	if info, err := os.Stat(coreDir); err != nil || !info.IsDir() {
		logf(fmt.Sprintf("No %s/ found, nothing to restore.", filepath.Base(coreDir)))
		return 0, nil
	}

	if overwriteDir != "" {
		rescued, err := rescueRuntimeFiles(deployDir, coreDir, overwriteDir, filemapPath, knownModFiles, logf)
		if err != nil {
			return 0, err
		}
		if rescued > 0 && onRescue != nil {
			files, err := listFiles(overwriteDir)
			if err != nil {
				return 0, err
			}
			overwriteFiles := make(map[string]string, len(files))
			for _, f := range files {
				rel, err := filepath.Rel(overwriteDir, f)
				if err != nil {
					continue
				}
				relSlash := pathutil.ToSlash(rel)
				overwriteFiles[strings.ToLower(relSlash)] = relSlash
			}
			if err := onRescue(overwriteFiles); err != nil {
				return 0, err
			}
		}
	}

	if _, err := clearDir(deployDir); err != nil {
		return 0, err
	}

	files, err := listFiles(coreDir)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, src := range files {
		rel, err := filepath.Rel(coreDir, src)
		if err != nil {
			return restored, err
		}
		dst := filepath.Join(deployDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return restored, err
		}
		if err := os.Rename(src, dst); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, os.RemoveAll(coreDir)
}

// rescueRuntimeFiles moves anything under deployDir that is neither a
// deployed mod file (symlink, or a hardlink with nlink>1) nor a vanilla
// file (present under coreDir) nor a known mod file (present in filemap.txt
// or any mod's index entry) into overwriteDir.
func rescueRuntimeFiles(deployDir, coreDir, overwriteDir, filemapPath string, knownModFiles map[string]bool, logf func(string)) (int, error) {
	coreLower := map[string]bool{}
	coreFiles, _ := listFiles(coreDir)
	for _, f := range coreFiles {
		rel, _ := filepath.Rel(coreDir, f)
		coreLower[strings.ToLower(pathutil.ToSlash(rel))] = true
	}

	filemapLower := map[string]bool{}
	if lines, err := readTabLines(filemapPath); err == nil {
		for _, l := range lines {
			filemapLower[strings.ToLower(l.path)] = true
		}
	}

	if info, err := os.Stat(deployDir); err != nil || !info.IsDir() {
		return 0, nil
	}

	files, err := listFiles(deployDir)
	if err != nil {
		return 0, err
	}

	rescued := 0
	for _, src := range files {
		if isSymlink(src) {
			continue
		}
		if hasMultipleLinks(src) {
			continue
		}
		rel, err := filepath.Rel(deployDir, src)
		if err != nil {
			continue
		}
		relLower := strings.ToLower(pathutil.ToSlash(rel))
		if coreLower[relLower] || filemapLower[relLower] || knownModFiles[relLower] {
			continue
		}
		dst := filepath.Join(overwriteDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return rescued, err
		}
		if err := os.Rename(src, dst); err != nil {
			return rescued, err
		}
		rescued++
	}
	if rescued > 0 {
		logf(fmt.Sprintf("Rescued %d runtime-created file(s) into overwrite/.", rescued))
	}
	return rescued, nil
}

type filemapLine struct {
	path string
	mod  string
}

func readTabLines(path string) ([]filemapLine, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []filemapLine
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		lines = append(lines, filemapLine{path: line[:tab], mod: line[tab+1:]})
	}
	return lines, sc.Err()
}
