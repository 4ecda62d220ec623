package filemap

import (
	"os"
	"path/filepath"
	"testing"

	"modcore/internal/modindex"
	"modcore/internal/modlist"
)

func setupIndex(t *testing.T, path string, idx modindex.Index) {
	t.Helper()
	for name, set := range idx {
		if err := modindex.Update(path, name, set.Normal, set.Root, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	s := string(b)
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

func TestBuildHigherPriorityWins(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	// index 0 is highest priority.
	if err := modlist.Write(modlistPath, []modlist.Entry{
		{Name: "High", Enabled: true},
		{Name: "Low", Enabled: true},
	}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{
		"Low":  {Normal: map[string]string{"x.esp": "X.esp"}},
		"High": {Normal: map[string]string{"x.esp": "X.esp"}},
	})

	result, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 {
		t.Fatalf("got count %d", result.Count)
	}
	lines := readLines(t, outputPath)
	if len(lines) != 1 || lines[0] != "X.esp\tHigh" {
		t.Errorf("got %v, want High to win", lines)
	}
	if result.Conflicts["High"] != ConflictWins {
		t.Errorf("High conflict = %v, want Wins", result.Conflicts["High"])
	}
	if result.Conflicts["Low"] != ConflictFull {
		t.Errorf("Low conflict = %v, want Full", result.Conflicts["Low"])
	}
}

func TestBuildOverwriteAlwaysWins(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	if err := modlist.Write(modlistPath, []modlist.Entry{{Name: "ModA", Enabled: true}}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{
		"ModA":                 {Normal: map[string]string{"x.esp": "X.esp"}},
		modindex.OverwriteName: {Normal: map[string]string{"x.esp": "X.esp"}},
	})

	_, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, outputPath)
	if len(lines) != 1 || lines[0] != "X.esp\t[Overwrite]" {
		t.Errorf("got %v, want overwrite to always win", lines)
	}
}

func TestBuildDisabledModExcluded(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	if err := modlist.Write(modlistPath, []modlist.Entry{{Name: "ModA", Enabled: false}}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{
		"ModA": {Normal: map[string]string{"x.esp": "X.esp"}},
	})

	result, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 0 {
		t.Errorf("got count %d, want 0 for disabled mod", result.Count)
	}
}

func TestBuildNoConflictWhenNoOverlap(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	if err := modlist.Write(modlistPath, []modlist.Entry{
		{Name: "A", Enabled: true},
		{Name: "B", Enabled: true},
	}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{
		"A": {Normal: map[string]string{"a.esp": "A.esp"}},
		"B": {Normal: map[string]string{"b.esp": "B.esp"}},
	})

	result, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Conflicts["A"] != ConflictNone || result.Conflicts["B"] != ConflictNone {
		t.Errorf("expected no conflicts, got %+v", result.Conflicts)
	}
}

func TestBuildPartialConflict(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	// Priority: Top > Mid > Bottom > Base.
	if err := modlist.Write(modlistPath, []modlist.Entry{
		{Name: "Top", Enabled: true},
		{Name: "Mid", Enabled: true},
		{Name: "Bottom", Enabled: true},
		{Name: "Base", Enabled: true},
	}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{
		"Top":    {Normal: map[string]string{"shared.esp": "shared.esp"}},
		"Mid":    {Normal: map[string]string{"shared.esp": "shared.esp", "unique_mid.esp": "unique_mid.esp"}},
		"Bottom": {Normal: map[string]string{"unique_bottom.esp": "unique_bottom.esp"}},
		"Base":   {Normal: map[string]string{"shared.esp": "shared.esp"}},
	})

	result, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Conflicts["Mid"] != ConflictPartial {
		t.Errorf("Mid conflict = %v, want Partial (overrides Base on shared, loses shared to Top)", result.Conflicts["Mid"])
	}
	if result.Conflicts["Bottom"] != ConflictNone {
		t.Errorf("Bottom conflict = %v, want None", result.Conflicts["Bottom"])
	}
}

func TestBuildRootDeployFiles(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	if err := modlist.Write(modlistPath, []modlist.Entry{{Name: "ModA", Enabled: true}}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{
		"ModA": {Root: map[string]string{"bin/plugin.dll": "bin/plugin.dll"}},
	})

	if _, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil); err != nil {
		t.Fatal(err)
	}
	rootPath := rootFilemapPath(outputPath)
	lines := readLines(t, rootPath)
	if len(lines) != 1 || lines[0] != "bin/plugin.dll\tModA" {
		t.Errorf("got %v", lines)
	}
}

func TestBuildRemovesStaleRootFilemapWhenNoRootFiles(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")
	rootPath := rootFilemapPath(outputPath)

	if err := os.WriteFile(rootPath, []byte("stale\tModA\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := modlist.Write(modlistPath, []modlist.Entry{{Name: "ModA", Enabled: true}}); err != nil {
		t.Fatal(err)
	}
	setupIndex(t, indexPath, modindex.Index{"ModA": {Normal: map[string]string{"a.esp": "A.esp"}}})

	if _, err := Build(modlistPath, indexPath, failRebuild(t), outputPath, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(rootPath); !os.IsNotExist(err) {
		t.Error("expected stale filemap_root.txt to be removed")
	}
}

func TestBuildFallsBackToRebuildWhenIndexMissing(t *testing.T) {
	dir := t.TempDir()
	modlistPath := filepath.Join(dir, "modlist.txt")
	indexPath := filepath.Join(dir, "modindex.txt")
	outputPath := filepath.Join(dir, "filemap.txt")

	if err := modlist.Write(modlistPath, []modlist.Entry{{Name: "ModA", Enabled: true}}); err != nil {
		t.Fatal(err)
	}

	called := false
	rebuild := func() (modindex.Index, error) {
		called = true
		return modindex.Index{"ModA": {Normal: map[string]string{"a.esp": "A.esp"}}}, nil
	}

	result, err := Build(modlistPath, indexPath, rebuild, outputPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("expected rebuild to be invoked when index is missing")
	}
	if result.Count != 1 {
		t.Errorf("got count %d", result.Count)
	}
}

func failRebuild(t *testing.T) func() (modindex.Index, error) {
	return func() (modindex.Index, error) {
		t.Fatal("rebuild should not be called when the index already exists")
		return nil, nil
	}
}
