package modlist

import (
	"path/filepath"
	"testing"
)

func TestReadModlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlist.txt")
	content := "+ModA\n-ModB\n*ModC\n\n-Group1_separator\nnotaprefix\n+Group2_separator\n"
	if err := writeRaw(path, content); err != nil {
		t.Fatal(err)
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Name: "ModA", Enabled: true},
		{Name: "ModB"},
		{Name: "ModC", Enabled: true, Locked: true},
		{Name: "Group1_separator", Enabled: true, Locked: true, IsSeparator: true},
		{Name: "Group2_separator", Enabled: true, IsSeparator: true},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestReadModlistMissing(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries, got %+v", entries)
	}
}

func TestWriteModlistRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlist.txt")
	entries := []Entry{
		{Name: "Top", Enabled: true},
		{Name: "Hidden"},
		{Name: "Forced", Enabled: true, Locked: true},
		// A separator is written as "-name", which reads back enabled and locked.
		{Name: "Section_separator", Enabled: true, Locked: true, IsSeparator: true},
	}
	if err := Write(path, entries); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e != entries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, entries[i])
		}
	}
}

func TestWriteModlistSeparatorAlwaysDash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlist.txt")
	entries := []Entry{{Name: "Sep_separator", Enabled: true, Locked: true, IsSeparator: true}}
	if err := Write(path, entries); err != nil {
		t.Fatal(err)
	}
	raw, err := readRaw(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw != "-Sep_separator\n" {
		t.Errorf("got %q, want %q", raw, "-Sep_separator\n")
	}
}

func TestWriteModlistEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlist.txt")
	if err := Write(path, nil); err != nil {
		t.Fatal(err)
	}
	raw, err := readRaw(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw != "" {
		t.Errorf("expected empty file with no entries, got %q", raw)
	}
}

func TestPrependMovesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlist.txt")
	if err := Write(path, []Entry{{Name: "A", Enabled: true}, {Name: "B", Enabled: true}}); err != nil {
		t.Fatal(err)
	}
	if err := Prepend(path, "B", true); err != nil {
		t.Fatal(err)
	}
	entries, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "B" || entries[1].Name != "A" {
		t.Errorf("got %+v, want B then A", entries)
	}
}

func TestDisplayName(t *testing.T) {
	e := Entry{Name: "Weapons_separator", IsSeparator: true}
	if e.DisplayName() != "Weapons" {
		t.Errorf("got %q, want %q", e.DisplayName(), "Weapons")
	}
	e2 := Entry{Name: "PlainMod"}
	if e2.DisplayName() != "PlainMod" {
		t.Errorf("got %q, want %q", e2.DisplayName(), "PlainMod")
	}
}
