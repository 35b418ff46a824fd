package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tree renders an ascii tree of the workspace, or of a subdirectory when
// rel is non-empty. Hidden entries are skipped.
func (w *Workspace) Tree(rel string) (string, error) {
	abs := w.root
	label := w.workID
	if rel != "" && rel != "." {
		resolved, err := w.Resolve(rel)
		if err != nil {
			return "", err
		}
		st, err := os.Stat(resolved)
		if err != nil {
			return "", fmt.Errorf("tree %s: %w", rel, err)
		}
		if !st.IsDir() {
			return "", fmt.Errorf("tree %s: not a directory", rel)
		}
		abs = resolved
		label = filepath.ToSlash(rel)
	}

	var b strings.Builder
	b.WriteString(label + "/\n")
	if err := writeTree(&b, abs, ""); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeTree(b *strings.Builder, dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	filtered := entries[:0]
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.Slice(filtered, func(i, j int) bool {
		// directories first, then lexical
		if filtered[i].IsDir() != filtered[j].IsDir() {
			return filtered[i].IsDir()
		}
		return filtered[i].Name() < filtered[j].Name()
	})

	for i, e := range filtered {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(filtered)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		b.WriteString(prefix + connector + name + "\n")
		if e.IsDir() {
			if err := writeTree(b, filepath.Join(dir, e.Name()), childPrefix); err != nil {
				return err
			}
		}
	}
	return nil
}
