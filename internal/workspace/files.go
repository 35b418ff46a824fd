package workspace

import (
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	maxTextRead  = 10 << 20 // text read cap
	maxUploadLen = 50 << 20 // upload cap
)

// File kinds reported by Read.
const (
	KindText   = "text"
	KindImage  = "image"
	KindBinary = "binary"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".svg": true, ".webp": true, ".tiff": true,
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".log": true,
	".py": true, ".go": true, ".js": true, ".ts": true, ".sh": true,
	".json": true, ".json5": true, ".yaml": true, ".yml": true,
	".toml": true, ".ini": true, ".cfg": true, ".conf": true,
	".csv": true, ".tsv": true, ".tex": true, ".bib": true,
	".html": true, ".css": true, ".xml": true, ".sql": true, ".r": true,
}

// FileContent is the result of Read.
type FileContent struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Content  string `json:"content,omitempty"` // utf-8 text or base64 for images
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Hint     string `json:"hint,omitempty"`
}

// FileInfo is one entry in listings.
type FileInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"` // relative to workspace root
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	IsDir    bool   `json:"is_dir,omitempty"`
}

// Read returns the file classified as text, image, or binary. Text comes
// back as utf-8 (10 MB cap), images as base64, everything else as
// metadata with a download hint.
func (w *Workspace) Read(rel string) (*FileContent, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", rel)
	}

	fc := &FileContent{
		Path:     rel,
		Size:     st.Size(),
		Modified: st.ModTime().UTC().Format(time.RFC3339),
	}

	ext := strings.ToLower(filepath.Ext(abs))
	switch {
	case imageExts[ext]:
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		fc.Kind = KindImage
		fc.Content = base64.StdEncoding.EncodeToString(data)
	case textExts[ext] || ext == "":
		if st.Size() > maxTextRead {
			return nil, fmt.Errorf("read %s: file exceeds %d MB text limit", rel, maxTextRead>>20)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		fc.Kind = KindText
		fc.Content = string(data)
	default:
		fc.Kind = KindBinary
		fc.Hint = "binary file; use the download endpoint to retrieve it"
	}
	return fc, nil
}

// Write creates parent directories and writes content as utf-8.
func (w *Workspace) Write(rel, content string) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Upload streams r to rel with a 50 MB cap.
func (w *Workspace) Upload(rel string, r io.Reader) (int64, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return 0, fmt.Errorf("upload %s: %w", rel, err)
	}
	f, err := os.Create(abs)
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", rel, err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, maxUploadLen+1))
	if err != nil {
		os.Remove(abs)
		return 0, fmt.Errorf("upload %s: %w", rel, err)
	}
	if n > maxUploadLen {
		os.Remove(abs)
		return 0, fmt.Errorf("upload %s: exceeds %d MB limit", rel, maxUploadLen>>20)
	}
	return n, nil
}

// Delete removes a file or directory tree. The workspace root itself is
// protected.
func (w *Workspace) Delete(rel string) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	rootReal, _ := filepath.EvalSymlinks(w.root)
	if abs == rootReal || rel == "" || rel == "." {
		return fmt.Errorf("delete: refusing to remove workspace root")
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	return nil
}

// Mkdir creates a directory (and parents) under the root.
func (w *Workspace) Mkdir(rel string) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", rel, err)
	}
	return nil
}

// Info stats a single path.
func (w *Workspace) Info(rel string) (*FileInfo, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("info %s: %w", rel, err)
	}
	return &FileInfo{
		Name:     st.Name(),
		Path:     rel,
		Size:     st.Size(),
		Modified: st.ModTime().UTC().Format(time.RFC3339),
		IsDir:    st.IsDir(),
	}, nil
}

// ListByCategory groups workspace files into the five frontend buckets.
// papers is the single top-level paper.md when present; attachments walks
// attachment/ recursively.
func (w *Workspace) ListByCategory() (map[string][]FileInfo, error) {
	out := map[string][]FileInfo{
		"code":        {},
		"logs":        {},
		"outputs":     {},
		"papers":      {},
		"attachments": {},
	}

	for bucket, dir := range map[string]string{
		"code":        "code",
		"logs":        "logs",
		"outputs":     "outputs",
		"attachments": "attachment",
	} {
		infos, err := w.listRecursive(dir)
		if err != nil {
			return nil, err
		}
		out[bucket] = infos
	}

	if fi, err := w.Info("paper.md"); err == nil && !fi.IsDir {
		out["papers"] = append(out["papers"], *fi)
	}
	if fi, err := w.Info("paper.docx"); err == nil && !fi.IsDir {
		out["papers"] = append(out["papers"], *fi)
	}
	return out, nil
}

func (w *Workspace) listRecursive(dir string) ([]FileInfo, error) {
	abs := filepath.Join(w.root, dir)
	infos := []FileInfo{}
	err := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		infos = append(infos, FileInfo{
			Name:     d.Name(),
			Path:     filepath.ToSlash(rel),
			Size:     st.Size(),
			Modified: st.ModTime().UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}
