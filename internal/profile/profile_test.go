package profile

import (
	"os"
	"path/filepath"
	"testing"

	"modcore/internal/deploy"
	"modcore/internal/gamecfg"
	"modcore/internal/modindex"
	"modcore/internal/modlist"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func dataBackupGame() gamecfg.Game {
	return gamecfg.Game{
		Name:              "testgame",
		Shape:             gamecfg.DataBackup,
		AllowedExtensions: []string{".esp", ".esm", ".bin"},
	}
}

func TestDeployAndRestoreDataBackupRoundtrip(t *testing.T) {
	root := t.TempDir()
	profileDir := filepath.Join(root, "profile")
	staging := filepath.Join(root, "staging")
	dest := filepath.Join(root, "Data")

	mustWriteFile(t, filepath.Join(staging, "ModA", "mod.bin"), "m")
	mustWriteFile(t, filepath.Join(dest, "vanilla.bin"), "v")
	mustWriteFile(t, filepath.Join(profileDir, "modlist.txt"), "+ModA\n")

	p := New(profileDir, staging, dest, dataBackupGame(), nil)

	if err := p.Deploy(deploy.Copy); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "mod.bin")); err != nil {
		t.Error("expected mod.bin deployed")
	}
	if _, err := os.Stat(filepath.Join(dest, "vanilla.bin")); err != nil {
		t.Error("expected vanilla.bin still present via gap-fill")
	}
	if _, err := os.Stat(dest + "_Core" + string(filepath.Separator) + "vanilla.bin"); err != nil {
		t.Error("expected vanilla.bin preserved in core backup")
	}
	deployedLog := filepath.Join(profileDir, "filemap_deployed.txt")
	if data, err := os.ReadFile(deployedLog); err != nil {
		t.Error("expected filemap_deployed.txt written while deploy is live")
	} else if string(data) != "mod.bin\n" {
		t.Errorf("got deployment log %q", data)
	}

	if err := p.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "mod.bin")); !os.IsNotExist(err) {
		t.Error("expected mod.bin removed after restore")
	}
	if _, err := os.Stat(filepath.Join(dest, "vanilla.bin")); err != nil {
		t.Error("expected vanilla.bin restored")
	}
	if _, err := os.Stat(deployedLog); !os.IsNotExist(err) {
		t.Error("expected filemap_deployed.txt removed after restore")
	}
}

func TestDeployRescuesRuntimeFileOnRestore(t *testing.T) {
	root := t.TempDir()
	profileDir := filepath.Join(root, "profile")
	staging := filepath.Join(root, "staging")
	dest := filepath.Join(root, "Data")

	mustWriteFile(t, filepath.Join(staging, "ModA", "mod.bin"), "m")
	mustWriteFile(t, filepath.Join(dest, "vanilla.bin"), "v")
	mustWriteFile(t, filepath.Join(profileDir, "modlist.txt"), "+ModA\n")

	p := New(profileDir, staging, dest, dataBackupGame(), nil)
	if err := p.Deploy(deploy.Copy); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	mustWriteFile(t, filepath.Join(dest, "save.sav"), "s")

	if err := p.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(profileDir, "overwrite", "save.sav")); err != nil {
		t.Error("expected save.sav rescued into the overwrite dir")
	}

	idx, err := modindex.Read(filepath.Join(profileDir, "modindex.txt"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := idx[modindex.OverwriteName]; !ok {
		t.Error("expected [Overwrite] entry recorded in the mod index after rescue")
	}
}

func TestRootOverlayDeployAndRestore(t *testing.T) {
	root := t.TempDir()
	profileDir := filepath.Join(root, "profile")
	staging := filepath.Join(root, "staging")
	gameRoot := filepath.Join(root, "game")

	mustWriteFile(t, filepath.Join(staging, "ModA", "bin", "plugin.dll"), "p")
	mustWriteFile(t, filepath.Join(gameRoot, "game.exe"), "exe")
	mustWriteFile(t, filepath.Join(profileDir, "modlist.txt"), "+ModA\n")

	game := gamecfg.Game{
		Name:              "rootgame",
		Shape:             gamecfg.RootOverlay,
		RootDeployFolders: []string{"bin"},
		AllowedExtensions: []string{".dll"},
	}
	p := New(profileDir, staging, gameRoot, game, nil)

	if err := p.Deploy(deploy.Copy); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(gameRoot, "bin", "plugin.dll")); err != nil {
		t.Error("expected plugin.dll placed under bin/")
	}

	mustWriteFile(t, filepath.Join(gameRoot, "bin", "cache.bin"), "c")

	if err := p.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(gameRoot, "bin")); !os.IsNotExist(err) {
		t.Error("expected bin/ fully removed after restore")
	}
	if _, err := os.Stat(filepath.Join(gameRoot, "game.exe")); err != nil {
		t.Error("expected game.exe untouched")
	}
}

func TestPackageOnlyGameRejectsDeployAndRestore(t *testing.T) {
	p := New(t.TempDir(), t.TempDir(), "", gamecfg.Game{Name: "bg3", Shape: gamecfg.PackageOnly}, nil)
	if err := p.Deploy(deploy.Copy); err == nil {
		t.Error("expected an error deploying a package-only game")
	}
	if err := p.Restore(); err == nil {
		t.Error("expected an error restoring a package-only game")
	}
}

func TestBackupAndRestoreBackupRoundtrip(t *testing.T) {
	profileDir := t.TempDir()
	mustWriteFile(t, filepath.Join(profileDir, "modlist.txt"), "+Original\n")

	p := New(profileDir, t.TempDir(), t.TempDir(), dataBackupGame(), nil)
	if err := p.Backup(); err != nil {
		t.Fatal(err)
	}

	snaps, err := p.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	mustWriteFile(t, filepath.Join(profileDir, "modlist.txt"), "+Changed\n")

	if err := p.RestoreBackup(snaps[0].Path); err != nil {
		t.Fatal(err)
	}
	entries, err := modlist.Read(filepath.Join(profileDir, "modlist.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "Original" {
		t.Errorf("got %+v, want restored modlist", entries)
	}
}

func TestMods(t *testing.T) {
	profileDir := t.TempDir()
	mustWriteFile(t, filepath.Join(profileDir, "modlist.txt"), "+ModA\n-ModB\n")

	p := New(profileDir, t.TempDir(), t.TempDir(), dataBackupGame(), nil)
	mods, err := p.Mods()
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 || mods[0].Name != "ModA" || mods[0].Enabled != true {
		t.Errorf("got %+v", mods)
	}
}
