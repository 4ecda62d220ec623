package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Scripts/Foo.pex", "scripts/foo.pex"},
		{`Data\Plugins\Bar.dll`, "data/plugins/bar.dll"},
		{"already/lower.txt", "already/lower.txt"},
	}
	for _, c := range cases {
		if got := Key(c.in); got != c.want {
			t.Errorf("Key(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveNoCase(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Scripts", "Foo.pex"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("matches differing case", func(t *testing.T) {
		got, ok := ResolveNoCase(root, "scripts/foo.pex", nil)
		if !ok {
			t.Fatal("expected a match")
		}
		want := filepath.Join(root, "Scripts", "Foo.pex")
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("missing segment", func(t *testing.T) {
		if _, ok := ResolveNoCase(root, "scripts/missing.pex", nil); ok {
			t.Fatal("expected no match")
		}
	})

	t.Run("directory is not a file", func(t *testing.T) {
		if _, ok := ResolveNoCase(root, "scripts", nil); ok {
			t.Fatal("a directory must not resolve as a file")
		}
	})

	t.Run("cache is reused across calls", func(t *testing.T) {
		cache := NewDirListing()
		if _, ok := ResolveNoCase(root, "Scripts/Foo.pex", cache); !ok {
			t.Fatal("expected a match")
		}
		if _, ok := cache.cache[root]; !ok {
			t.Fatal("expected the root directory listing to be cached")
		}
	})
}

func TestIsUnder(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "sub", "file.txt")
	if err := os.MkdirAll(filepath.Dir(inside), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(inside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !IsUnder(inside, root) {
		t.Error("expected path inside root to be under root")
	}
	if !IsUnder(root, root) {
		t.Error("root is under itself")
	}
	outside := filepath.Join(filepath.Dir(root), "elsewhere", "x.txt")
	if IsUnder(outside, root) {
		t.Error("expected sibling path to not be under root")
	}
	traversal := filepath.Join(root, "..", filepath.Base(root)+"-evil")
	if IsUnder(traversal, root) {
		t.Error("expected traversal path to not be under root")
	}
}
