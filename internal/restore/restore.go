// Package restore undoes a deploy for both deployment shapes: classifying
// what in the destination is a deployed mod file, a vanilla file, or a
// runtime-created file that must be rescued before the destination is
// cleared.
//
// Deploy and restore share the same transfer and directory-walk
// primitives, so this package is a thin wrapper over internal/deploy
// rather than a reimplementation of them.
package restore

import "modcore/internal/deploy"

// DataBackup undoes a data-backup deploy: rescues any runtime-created file
// under deployDir into overwriteDir (when non-empty), clears deployDir,
// moves coreDir's contents back in, and removes coreDir. knownModFiles is
// every lowercased rel path known to any mod in the index across every
// profile, consulted alongside filemap.txt so cross-profile mod files are
// never mistaken for runtime writes. onRescue, when non-nil, receives the
// full overwrite/ file list after a rescue so the caller can update the Mod
// Index's [Overwrite] entry without a rescan. Returns the number of files
// restored.
func DataBackup(deployDir, coreDir, overwriteDir, filemapPath string, knownModFiles map[string]bool, logf func(string), onRescue func(overwriteFiles map[string]string) error) (int, error) {
	return deploy.RestoreDataBackup(deployDir, coreDir, overwriteDir, filemapPath, knownModFiles, logf, onRescue)
}

// RootOverlay undoes a DeployRootOverlay: removes every file it placed,
// restores anything it backed up, wipes directories it freshly created,
// and prunes empty directories left behind. Every path derived from the
// deployment log is checked with pathutil.IsUnder before being touched.
func RootOverlay(gameRoot, backupDir, logPath string, logf func(string)) (int, error) {
	return deploy.RestoreRootOverlay(gameRoot, backupDir, logPath, logf)
}
