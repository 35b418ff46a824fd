package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const paperWithTail = `# **引言**

intro text

# **实验**

results here

# **结论**

closing
`

func TestInsertImageMarkdownPositions(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		position string
		check    func(t *testing.T, out string)
	}{
		{
			name:     "beginning",
			content:  "body",
			position: "beginning",
			check: func(t *testing.T, out string) {
				if !strings.HasPrefix(out, "![p](outputs/plots/p.png)\n\n") {
					t.Errorf("out = %q", out)
				}
			},
		},
		{
			name:     "end",
			content:  "body\n",
			position: "end",
			check: func(t *testing.T, out string) {
				if !strings.HasSuffix(out, "body\n\n![p](outputs/plots/p.png)\n") {
					t.Errorf("out = %q", out)
				}
			},
		},
		{
			name:     "smart before tail heading",
			content:  paperWithTail,
			position: "smart",
			check: func(t *testing.T, out string) {
				img := strings.Index(out, "![p]")
				tail := strings.Index(out, "# **结论**")
				res := strings.Index(out, "results here")
				if img < 0 || !(res < img && img < tail) {
					t.Errorf("smart insert should land between results and 结论:\n%s", out)
				}
			},
		},
		{
			name:     "smart without tail heading",
			content:  "# **引言**\n\nintro\n",
			position: "smart",
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, "intro\n\n![p](outputs/plots/p.png)") {
					t.Errorf("smart insert should follow the last body line:\n%s", out)
				}
			},
		},
		{
			name:     "empty file",
			content:  "",
			position: "smart",
			check: func(t *testing.T, out string) {
				if out != "![p](outputs/plots/p.png)\n" {
					t.Errorf("out = %q", out)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := insertImageMarkdown(tt.content, "outputs/plots/p.png", "p", tt.position)
			tt.check(t, out)
		})
	}
}

func TestListOutputImagesNewestFirst(t *testing.T) {
	ws := newToolWorkspace(t)
	oldPath := filepath.Join(ws.Root(), "outputs/plots/old.png")
	newPath := filepath.Join(ws.Root(), "outputs/plots/new.png")
	if err := os.WriteFile(oldPath, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newPath, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	os.Chtimes(oldPath, past, past)

	// non-image files are skipped
	os.WriteFile(filepath.Join(ws.Root(), "outputs/data/table.csv"), []byte("x"), 0644)

	imgs, err := listOutputImages(ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 2 {
		t.Fatalf("got %d images, want 2: %+v", len(imgs), imgs)
	}
	if imgs[0].rel != "outputs/plots/new.png" || imgs[1].rel != "outputs/plots/old.png" {
		t.Errorf("order = %s, %s; want newest first", imgs[0].rel, imgs[1].rel)
	}
}

func TestInsertLatestImageTool(t *testing.T) {
	ws := newToolWorkspace(t)
	tool := &InsertLatestImageTool{WS: ws}

	res := tool.Execute(context.Background(), nil)
	if !res.IsError || !strings.Contains(res.ForLLM, "没有图片") {
		t.Errorf("no images should error, got %+v", res)
	}

	os.WriteFile(filepath.Join(ws.Root(), "outputs/plots/plot_1.png"), []byte("x"), 0644)
	ws.Write("paper.md", paperWithTail)

	res = tool.Execute(context.Background(), map[string]interface{}{"position": "smart"})
	if res.IsError {
		t.Fatalf("insert failed: %s", res.ForLLM)
	}
	fc, _ := ws.Read("paper.md")
	if !strings.Contains(fc.Content, "![plot_1](outputs/plots/plot_1.png)") {
		t.Errorf("image link missing (description should default to basename):\n%s", fc.Content)
	}
}

func TestInsertImageByNameTool(t *testing.T) {
	ws := newToolWorkspace(t)
	os.WriteFile(filepath.Join(ws.Root(), "outputs/plots/a.png"), []byte("x"), 0644)
	tool := &InsertImageByNameTool{WS: ws}

	res := tool.Execute(context.Background(), map[string]interface{}{"name": "missing.png"})
	if !res.IsError || !strings.Contains(res.ForLLM, "未找到图片") {
		t.Errorf("missing image should error, got %+v", res)
	}

	res = tool.Execute(context.Background(), map[string]interface{}{"name": "a.png"})
	if res.IsError {
		t.Fatalf("insert by name failed: %s", res.ForLLM)
	}
	fc, _ := ws.Read("paper.md")
	if !strings.Contains(fc.Content, "(outputs/plots/a.png)") {
		t.Errorf("paper.md = %q", fc.Content)
	}
}
