package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := Open(t.TempDir(), "w1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ws
}

func TestOpenCreatesLayout(t *testing.T) {
	ws := newTestWorkspace(t)
	for _, d := range []string{"code", "outputs/plots", "outputs/data", "logs", "temp", "attachment"} {
		st, err := os.Stat(filepath.Join(ws.Root(), d))
		if err != nil || !st.IsDir() {
			t.Errorf("layout dir %s missing: %v", d, err)
		}
	}

	meta, err := ws.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.WorkID != "w1" || meta.Version != "2.0" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	ws := newTestWorkspace(t)
	tests := []struct {
		name string
		rel  string
	}{
		{name: "parent traversal", rel: "../other"},
		{name: "nested traversal", rel: "code/../../other"},
		{name: "absolute", rel: "/etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ws.Resolve(tt.rel); err == nil {
				t.Errorf("Resolve(%q) succeeded, want error", tt.rel)
			}
		})
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	ws := newTestWorkspace(t)
	outside := t.TempDir()
	link := filepath.Join(ws.Root(), "leak")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := ws.Resolve("leak/secret.txt"); err == nil {
		t.Error("Resolve through outward symlink succeeded, want error")
	}
}

func TestResolveAllowsNewPaths(t *testing.T) {
	ws := newTestWorkspace(t)
	abs, err := ws.Resolve("outputs/data/new/deep/file.csv")
	if err != nil {
		t.Fatalf("Resolve new path: %v", err)
	}
	if !strings.HasPrefix(abs, ws.Root()) {
		t.Errorf("resolved path %q outside root %q", abs, ws.Root())
	}
}

func TestReadClassifies(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Write("notes.md", "# hi"); err != nil {
		t.Fatal(err)
	}
	if err := ws.Write("outputs/plots/p.png", "\x89PNG"); err != nil {
		t.Fatal(err)
	}
	if err := ws.Write("data.bin", "\x00\x01"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		rel      string
		wantKind string
	}{
		{rel: "notes.md", wantKind: KindText},
		{rel: "outputs/plots/p.png", wantKind: KindImage},
		{rel: "data.bin", wantKind: KindBinary},
	}
	for _, tt := range tests {
		fc, err := ws.Read(tt.rel)
		if err != nil {
			t.Fatalf("Read(%q): %v", tt.rel, err)
		}
		if fc.Kind != tt.wantKind {
			t.Errorf("Read(%q).Kind = %q, want %q", tt.rel, fc.Kind, tt.wantKind)
		}
	}

	fc, _ := ws.Read("notes.md")
	if fc.Content != "# hi" {
		t.Errorf("text content = %q", fc.Content)
	}
}

func TestUploadCapEnforced(t *testing.T) {
	ws := newTestWorkspace(t)
	big := strings.NewReader(strings.Repeat("x", maxUploadLen+1))
	if _, err := ws.Upload("attachment/big.txt", big); err == nil {
		t.Fatal("oversized upload succeeded, want error")
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "attachment/big.txt")); !os.IsNotExist(err) {
		t.Error("partial upload left on disk")
	}

	n, err := ws.Upload("attachment/ok.txt", strings.NewReader("fine"))
	if err != nil || n != 4 {
		t.Errorf("Upload = (%d, %v), want (4, nil)", n, err)
	}
}

func TestDeleteRefusesRoot(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Delete("."); err == nil {
		t.Error("Delete(\".\") succeeded, want error")
	}
	if err := ws.Write("junk.txt", "x"); err != nil {
		t.Fatal(err)
	}
	if err := ws.Delete("junk.txt"); err != nil {
		t.Errorf("Delete file: %v", err)
	}
}

func TestListByCategory(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Write("code/run.py", "print(1)")
	ws.Write("outputs/plots/p.png", "img")
	ws.Write("attachment/data.csv", "a,b")
	ws.Write("paper.md", "# title")

	cats, err := ws.ListByCategory()
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		bucket string
		path   string
	}{
		{bucket: "code", path: "code/run.py"},
		{bucket: "outputs", path: "outputs/plots/p.png"},
		{bucket: "attachments", path: "attachment/data.csv"},
		{bucket: "papers", path: "paper.md"},
	}
	for _, c := range checks {
		found := false
		for _, fi := range cats[c.bucket] {
			if fi.Path == c.path {
				found = true
			}
		}
		if !found {
			t.Errorf("bucket %s missing %s: %+v", c.bucket, c.path, cats[c.bucket])
		}
	}
	if len(cats["logs"]) != 0 {
		t.Errorf("logs bucket = %+v, want empty", cats["logs"])
	}
}

func TestTree(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Write("code/a.py", "x")
	ws.Write("code/sub/b.py", "y")

	out, err := ws.Tree("code")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"a.py", "sub", "b.py", "└── ", "├── "} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
	// directories listed before files at the same level
	if strings.Index(out, "sub") > strings.Index(out, "a.py") {
		t.Errorf("directories should sort before files:\n%s", out)
	}
}
