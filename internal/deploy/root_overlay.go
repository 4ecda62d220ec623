package deploy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modcore/internal/pathutil"
)

const dirsSectionMarker = "---dirs---"

// RootOverlaySource is one file to place into gameRoot, as (absolute
// source path, slash-separated relative path).
type RootOverlaySource struct {
	Src string
	Rel string
}

// DeployRootOverlay transfers sources into gameRoot, backing up any
// pre-existing file a source overwrites into backupDir (preserving its
// relative path) and writing logPath so RestoreRootOverlay can undo the
// operation. Top-level directories freshly created by this deploy are
// recorded in a trailing ---dirs--- log section so restore can wipe them
// entirely, including anything the game wrote into them afterwards.
// Returns the number of files transferred.
func DeployRootOverlay(sources []RootOverlaySource, gameRoot, backupDir, logPath string, mode LinkMode, logf func(string), progress ProgressFunc) (int, error) {
	if logf == nil {
		logf = func(string) {}
	}
	if len(sources) == 0 {
		return 0, nil
	}

	var placed []string
	createdDirs := map[string]bool{}

	for i, s := range sources {
		progress.report(i+1, len(sources), "root-overlay")
		dst := filepath.Join(gameRoot, filepath.FromSlash(s.Rel))

		if top, ok := topLevelSegment(s.Rel); ok {
			if _, err := os.Stat(filepath.Join(gameRoot, top)); os.IsNotExist(err) {
				createdDirs[top] = true
			}
		}

		if isSymlink(dst) {
			os.Remove(dst)
		} else if info, err := os.Stat(dst); err == nil && !info.IsDir() {
			bak := filepath.Join(backupDir, filepath.FromSlash(s.Rel))
			if err := os.MkdirAll(filepath.Dir(bak), 0o755); err != nil {
				return len(placed), err
			}
			if err := os.Rename(dst, bak); err != nil {
				return len(placed), err
			}
			logf("Backed up existing " + s.Rel + " -> " + filepath.Base(backupDir) + "/")
		}

		if err := Transfer(s.Src, dst, mode); err != nil {
			logf("WARN: could not transfer root file " + s.Rel + ": " + err.Error())
			continue
		}
		placed = append(placed, s.Rel)
	}

	if err := writeRootOverlayLog(logPath, placed, createdDirs); err != nil {
		return len(placed), err
	}
	return len(placed), nil
}

func topLevelSegment(rel string) (string, bool) {
	parts := strings.SplitN(rel, "/", 2)
	if len(parts) < 2 {
		return "", false
	}
	return parts[0], true
}

func writeRootOverlayLog(logPath string, placed []string, createdDirs map[string]bool) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(strings.Join(placed, "\n"))
	if len(createdDirs) > 0 {
		names := make([]string, 0, len(createdDirs))
		for d := range createdDirs {
			names = append(names, d)
		}
		sort.Strings(names)
		b.WriteString("\n" + dirsSectionMarker + "\n")
		b.WriteString(strings.Join(names, "\n"))
	}
	return os.WriteFile(logPath, []byte(b.String()), 0o644)
}

// RestoreRootOverlay undoes a DeployRootOverlay: removes every file it
// placed, restores anything backed up, wipes directories it freshly
// created (including any content the game later wrote there), then prunes
// any now-empty directories under pre-existing folders. Silently does
// nothing if logPath is absent. Returns the number of files removed.
func RestoreRootOverlay(gameRoot, backupDir, logPath string, logf func(string)) (int, error) {
	if logf == nil {
		logf = func(string) {}
	}
	raw, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	content := string(raw)
	filesSection, dirsSection, _ := strings.Cut(content, dirsSectionMarker)
	placed := nonEmptyLines(filesSection)
	createdDirs := nonEmptyLines(dirsSection)

	removed := 0
	for _, rel := range placed {
		dst := filepath.Join(gameRoot, filepath.FromSlash(rel))
		if !pathutil.IsUnder(dst, gameRoot) {
			logf("SKIP: path traversal blocked: " + rel)
			continue
		}
		if info, err := os.Lstat(dst); err == nil && !info.IsDir() {
			if err := os.Remove(dst); err == nil {
				removed++
			}
		}
	}

	if info, err := os.Stat(backupDir); err == nil && info.IsDir() {
		files, _ := listFiles(backupDir)
		for _, bakSrc := range files {
			rel, err := filepath.Rel(backupDir, bakSrc)
			if err != nil {
				continue
			}
			orig := filepath.Join(gameRoot, rel)
			if !pathutil.IsUnder(orig, gameRoot) {
				logf("SKIP: path traversal blocked: " + rel)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(orig), 0o755); err != nil {
				return removed, err
			}
			if err := os.Rename(bakSrc, orig); err != nil {
				return removed, err
			}
			logf("Restored " + rel + " from " + filepath.Base(backupDir) + "/")
		}
		os.RemoveAll(backupDir)
	}

	os.Remove(logPath)

	for _, dirName := range createdDirs {
		if strings.Contains(dirName, "..") || strings.ContainsAny(dirName, "/\\") {
			logf("SKIP: path traversal blocked: " + dirName + "/")
			continue
		}
		d := filepath.Join(gameRoot, dirName)
		if !pathutil.IsUnder(d, gameRoot) {
			logf("SKIP: path traversal blocked: " + dirName + "/")
			continue
		}
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			os.RemoveAll(d)
			logf("Removed created directory " + dirName + "/")
		}
	}

	pruneEmptyParents(gameRoot, placed)

	return removed, nil
}

// pruneEmptyParents removes now-empty directories left behind under
// pre-existing folders that placed files used to live in, deepest first.
func pruneEmptyParents(gameRoot string, placed []string) {
	seen := map[string]bool{}
	var dirs []string
	for _, rel := range placed {
		dst := filepath.Join(gameRoot, filepath.FromSlash(rel))
		if !pathutil.IsUnder(dst, gameRoot) {
			continue
		}
		dir := filepath.Dir(dst)
		for dir != gameRoot && dir != filepath.Dir(gameRoot) && dir != filepath.Dir(dir) {
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
			dir = filepath.Dir(dir)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		os.Remove(d) // only succeeds when empty
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
