// Package profile orchestrates one profile's full lifecycle (index
// rebuild, filemap build, deploy, restore, and backup) against a single
// game configuration, the way a top-level updater type ties together the
// lower-level packages for a CLI command to call.
package profile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modcore/internal/applog"
	"modcore/internal/backup"
	"modcore/internal/deploy"
	"modcore/internal/filemap"
	"modcore/internal/gamecfg"
	"modcore/internal/modindex"
	"modcore/internal/modlist"
	"modcore/internal/pathutil"
	"modcore/internal/plugins"
	"modcore/internal/restore"
)

const (
	modlistName     = "modlist.txt"
	indexName       = "modindex.txt"
	filemapName     = "filemap.txt"
	pluginsName     = "plugins.txt"
	overwriteDirN   = "overwrite"
	deployedLogName = "filemap_deployed.txt"
	rootDeployLogN  = "root_folder_deployed.txt"
	rootBackupDirN  = "Root_Backup"
)

// Profile ties a profile directory and staging root to one game's
// configuration, giving every operation a single, reusable entry point.
type Profile struct {
	Dir         string
	StagingRoot string
	DestDir     string // data dir (data-backup) or game root (root-overlay); unused for package-only
	Game        gamecfg.Game
	Cache       *modindex.Cache
	Log         applog.Sink
}

// New builds a Profile. Cache may be nil, in which case a private one is
// created (no reuse across Profile instances).
func New(profileDir, stagingRoot, destDir string, game gamecfg.Game, cache *modindex.Cache) *Profile {
	if cache == nil {
		cache = modindex.NewCache()
	}
	return &Profile{
		Dir:         profileDir,
		StagingRoot: stagingRoot,
		DestDir:     destDir,
		Game:        game,
		Cache:       cache,
	}
}

func (p *Profile) modlistPath() string     { return filepath.Join(p.Dir, modlistName) }
func (p *Profile) indexPath() string       { return filepath.Join(p.Dir, indexName) }
func (p *Profile) filemapPath() string     { return filepath.Join(p.Dir, filemapName) }
func (p *Profile) pluginsPath() string     { return filepath.Join(p.Dir, pluginsName) }
func (p *Profile) overwriteDir() string    { return filepath.Join(p.Dir, overwriteDirN) }
func (p *Profile) rootDeployLog() string   { return filepath.Join(p.Dir, rootDeployLogN) }
func (p *Profile) deployedLogPath() string { return filepath.Join(p.Dir, deployedLogName) }
func (p *Profile) rootBackupDir() string   { return filepath.Join(p.Dir, rootBackupDirN) }
func (p *Profile) coreDir() string         { return p.DestDir + "_Core" }

func (p *Profile) rebuildConfig() modindex.RebuildConfig {
	perMod := make(map[string][]string, len(p.Game.PerModStripPrefixes))
	for mod, prefix := range p.Game.PerModStripPrefixes {
		perMod[mod] = []string{prefix}
	}
	return modindex.RebuildConfig{
		StripPrefixes:       stringSet(p.Game.StripPrefixes),
		PerModStripPrefixes: perMod,
		AllowedExtensions:   stringSet(p.Game.AllowedExtensions),
		RootDeployFolders:   stringSet(p.Game.RootDeployFolders),
	}
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

// RebuildIndex performs a full rescan of every staging mod folder plus the
// overwrite directory, replacing modindex.txt.
func (p *Profile) RebuildIndex() error {
	p.Log.Log(applog.Info, "Rebuilding mod index...")
	if err := modindex.Rebuild(p.indexPath(), p.StagingRoot, p.overwriteDir(), p.rebuildConfig(), p.Cache); err != nil {
		return fmt.Errorf("profile: rebuilding index: %w", err)
	}
	return nil
}

// BuildFilemap computes the winning filemap from modlist.txt + modindex.txt,
// rebuilding the index automatically if it's missing or unreadable (wrong
// header). An index that is readable but out of date is used as is.
func (p *Profile) BuildFilemap() (filemap.Result, error) {
	result, err := filemap.Build(p.modlistPath(), p.indexPath(), func() (modindex.Index, error) {
		if err := p.RebuildIndex(); err != nil {
			return nil, err
		}
		return modindex.Read(p.indexPath(), p.Cache)
	}, p.filemapPath(), p.Cache)
	if err != nil {
		return filemap.Result{}, fmt.Errorf("profile: building filemap: %w", err)
	}
	return result, nil
}

func (p *Profile) resolveConfig() deploy.ResolveConfig {
	perMod := make(map[string][]string, len(p.Game.PerModStripPrefixes))
	for mod, prefix := range p.Game.PerModStripPrefixes {
		perMod[mod] = []string{prefix}
	}
	return deploy.ResolveConfig{
		StripPrefixes:       p.Game.StripPrefixes,
		PerModStripPrefixes: perMod,
	}
}

// Deploy materialises the current filemap into DestDir, branching on the
// game's deployment shape.
func (p *Profile) Deploy(mode deploy.LinkMode) error {
	if _, err := p.BuildFilemap(); err != nil {
		return err
	}
	logf := p.Log.LogFunc()

	switch p.Game.Shape {
	case gamecfg.DataBackup:
		if _, err := deploy.BackupDataCore(p.DestDir, p.coreDir()); err != nil {
			return fmt.Errorf("profile: backing up vanilla data: %w", err)
		}
		_, placed, err := deploy.DeployFilemap(p.filemapPath(), p.DestDir, p.StagingRoot, p.overwriteDir(), mode, p.resolveConfig(), logf, p.Log.ProgressFunc())
		if err != nil {
			return fmt.Errorf("profile: deploying filemap: %w", err)
		}
		if _, err := deploy.DeployCore(p.DestDir, p.coreDir(), placed, mode, logf, p.Log.ProgressFunc()); err != nil {
			return fmt.Errorf("profile: filling gaps from core: %w", err)
		}
		if err := p.writeDeployedLog(placed); err != nil {
			return fmt.Errorf("profile: writing deployment log: %w", err)
		}
		return p.syncPlugins()
	case gamecfg.RootOverlay:
		sources, err := p.rootOverlaySources()
		if err != nil {
			return err
		}
		if _, err := deploy.DeployRootOverlay(sources, p.DestDir, p.rootBackupDir(), p.rootDeployLog(), mode, logf, p.Log.ProgressFunc()); err != nil {
			return fmt.Errorf("profile: deploying root overlay: %w", err)
		}
		return p.syncPlugins()
	case gamecfg.PackageOnly:
		return fmt.Errorf("profile: game %q has no filesystem deployment step", p.Game.Name)
	default:
		return fmt.Errorf("profile: unknown deployment shape %q", p.Game.Shape)
	}
}

// rootOverlaySources reads filemap_root.txt (display\twinning_mod lines,
// written alongside filemap.txt by BuildFilemap) and resolves each winning
// entry to its source path under the staging root.
func (p *Profile) rootOverlaySources() ([]deploy.RootOverlaySource, error) {
	rootPath := filepath.Join(filepath.Dir(p.filemapPath()), "filemap_root.txt")
	f, err := os.Open(rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: reading filemap_root.txt: %w", err)
	}
	defer f.Close()

	var sources []deploy.RootOverlaySource
	listing := pathutil.NewDirListing()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		display, mod := parts[0], parts[1]
		modRoot := filepath.Join(p.StagingRoot, mod)
		if mod == deploy.OverwriteName {
			modRoot = p.overwriteDir()
		}
		src := filepath.Join(modRoot, filepath.FromSlash(display))
		if _, err := os.Stat(src); err != nil {
			if resolved, ok := pathutil.ResolveNoCase(modRoot, display, listing); ok {
				src = resolved
			}
		}
		sources = append(sources, deploy.RootOverlaySource{Src: src, Rel: display})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("profile: reading filemap_root.txt: %w", err)
	}
	return sources, nil
}

// writeDeployedLog records every path the deploy placed, in filemap order,
// next to the filemap. Its presence marks a live deploy; writing it must
// not fail, because without it the destination cannot be cleanly restored.
func (p *Profile) writeDeployedLog(placed map[string]bool) error {
	f, err := os.Open(p.filemapPath())
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		display, _, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			continue
		}
		if placed[strings.ToLower(display)] {
			b.WriteString(display)
			b.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.WriteFile(p.deployedLogPath(), []byte(b.String()), 0o644)
}

// Restore undoes the last deploy for DestDir, rescuing any runtime-created
// files into the overwrite area and recording them in the Mod Index under
// the [Overwrite] entry.
func (p *Profile) Restore() error {
	logf := p.Log.LogFunc()

	switch p.Game.Shape {
	case gamecfg.DataBackup:
		idx, err := modindex.Read(p.indexPath(), p.Cache)
		if err != nil {
			return fmt.Errorf("profile: reading index: %w", err)
		}
		known := knownModFiles(idx)
		_, err = restore.DataBackup(p.DestDir, p.coreDir(), p.overwriteDir(), p.filemapPath(), known, logf, p.onRescue)
		if err != nil {
			return fmt.Errorf("profile: restoring data backup: %w", err)
		}
		os.Remove(p.deployedLogPath())
		return nil
	case gamecfg.RootOverlay:
		_, err := restore.RootOverlay(p.DestDir, p.rootBackupDir(), p.rootDeployLog(), logf)
		if err != nil {
			return fmt.Errorf("profile: restoring root overlay: %w", err)
		}
		return nil
	case gamecfg.PackageOnly:
		return fmt.Errorf("profile: game %q has no filesystem deployment step", p.Game.Name)
	default:
		return fmt.Errorf("profile: unknown deployment shape %q", p.Game.Shape)
	}
}

// onRescue updates the [Overwrite] entry of the Mod Index in place so a
// runtime-created file rescued during restore is picked up by the very
// next filemap build.
func (p *Profile) onRescue(overwriteFiles map[string]string) error {
	if len(overwriteFiles) == 0 {
		return nil
	}
	return modindex.Update(p.indexPath(), modindex.OverwriteName, overwriteFiles, nil, p.Cache)
}

func knownModFiles(idx modindex.Index) map[string]bool {
	known := make(map[string]bool)
	for mod, set := range idx {
		if mod == modindex.OverwriteName {
			continue
		}
		for key := range set.Normal {
			known[key] = true
		}
	}
	return known
}

// syncPlugins appends any new root-level plugin files the deploy just
// placed to plugins.txt and prunes entries whose backing file is gone.
func (p *Profile) syncPlugins() error {
	if len(p.Game.PluginExtensions) == 0 {
		return nil
	}
	var errs []error
	if _, err := plugins.SyncFromFilemap(p.filemapPath(), p.pluginsPath(), p.Game.PluginExtensions); err != nil {
		errs = append(errs, err)
	}
	if _, err := plugins.PruneFromFilemap(p.filemapPath(), p.pluginsPath(), p.Game.PluginExtensions, p.DestDir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Backup snapshots modlist.txt, plugins.txt, and UI-state files, pruning to
// the ten newest.
func (p *Profile) Backup() error {
	if err := backup.Create(p.Dir, p.Log.LogFunc()); err != nil {
		return fmt.Errorf("profile: creating backup: %w", err)
	}
	return nil
}

// Backups lists available snapshots, newest first.
func (p *Profile) Backups() ([]backup.Snapshot, error) {
	return backup.List(p.Dir)
}

// RestoreBackup restores the named snapshot over the live profile files.
func (p *Profile) RestoreBackup(backupDir string) error {
	if err := backup.Restore(p.Dir, backupDir); err != nil {
		return fmt.Errorf("profile: restoring backup: %w", err)
	}
	return nil
}

// Mods returns modlist.txt in priority order (index 0 = highest priority).
func (p *Profile) Mods() ([]modlist.Entry, error) {
	entries, err := modlist.Read(p.modlistPath())
	if err != nil {
		return nil, fmt.Errorf("profile: reading modlist: %w", err)
	}
	return entries, nil
}
