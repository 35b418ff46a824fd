package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Standard subdirectories created for every work.
var layoutDirs = []string{
	"code",
	"outputs/plots",
	"outputs/data",
	"logs",
	"temp",
	"attachment",
}

// Workspace is the on-disk root for one work. All operations take paths
// relative to the root and refuse anything that resolves outside it.
type Workspace struct {
	workID string
	root   string
}

// Open ensures the directory layout for workID under baseDir and returns
// the workspace handle.
func Open(baseDir, workID string) (*Workspace, error) {
	if workID == "" {
		return nil, fmt.Errorf("workspace: empty work id")
	}
	root := filepath.Join(baseDir, workID)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	for _, d := range layoutDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, fmt.Errorf("workspace: create %s: %w", d, err)
		}
	}
	ws := &Workspace{workID: workID, root: root}
	if err := ws.ensureMetadata(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (w *Workspace) WorkID() string { return w.workID }
func (w *Workspace) Root() string   { return w.root }

// CodeDir returns the absolute path of the code/ subdirectory.
func (w *Workspace) CodeDir() string { return filepath.Join(w.root, "code") }

// Resolve joins rel under the workspace root and verifies the result stays
// inside it. Symlinks in already-existing components are followed before
// the prefix check.
func (w *Workspace) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("invalid path %q: absolute paths not allowed", rel)
	}
	joined := filepath.Join(w.root, filepath.Clean(rel))

	rootReal, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		return "", fmt.Errorf("invalid workspace root: %w", err)
	}

	// The target may not exist yet; walk up to the nearest existing parent
	// and realpath that.
	probe := joined
	var tail []string
	for {
		if _, err := os.Lstat(probe); err == nil {
			break
		}
		tail = append([]string{filepath.Base(probe)}, tail...)
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	probeReal, err := filepath.EvalSymlinks(probe)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", rel, err)
	}
	resolved := filepath.Join(append([]string{probeReal}, tail...)...)

	if resolved != rootReal && !strings.HasPrefix(resolved, rootReal+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path %q: escapes workspace", rel)
	}
	return resolved, nil
}
