package templates

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSeedsDefaults(t *testing.T) {
	dir := t.TempDir()
	idx, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ids := idx.IDs()
	if len(ids) == 0 {
		t.Fatal("no default templates seeded")
	}
	for _, id := range []string{"generic_paper", "experiment_report"} {
		if _, ok := idx.Lookup(id); !ok {
			t.Errorf("default template %s missing, have %v", id, ids)
		}
	}
}

func TestSeedDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "generic_paper.md")
	if err := os.WriteFile(custom, []byte("# mine"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(custom)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# mine" {
		t.Error("seeding overwrote an existing template")
	}
}

func TestLookupAndRescan(t *testing.T) {
	dir := t.TempDir()
	idx, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := idx.Lookup("thesis"); ok {
		t.Error("unknown id resolved")
	}

	if err := os.WriteFile(filepath.Join(dir, "thesis.md"), []byte("# t"), 0644); err != nil {
		t.Fatal(err)
	}
	// not visible until a rescan
	if err := idx.rescan(); err != nil {
		t.Fatal(err)
	}
	path, ok := idx.Lookup("thesis")
	if !ok || path != filepath.Join(dir, "thesis.md") {
		t.Errorf("Lookup(thesis) = (%q, %v)", path, ok)
	}

	// non-markdown files are ignored
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644)
	idx.rescan()
	if _, ok := idx.Lookup("readme"); ok {
		t.Error("non-markdown file indexed")
	}
}
