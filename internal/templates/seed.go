package templates

import (
	"embed"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed defaults/*.md
var defaultFS embed.FS

// EnsureDefaults seeds the built-in templates into dir. Only files that do
// not already exist are written, so user edits survive restarts. Returns
// the names created.
func EnsureDefaults(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(defaultFS, "defaults")
	if err != nil {
		return nil, err
	}

	var created []string
	for _, e := range entries {
		name := e.Name()
		ok, err := seedDefault(dir, name)
		if err != nil {
			slog.Warn("template seed failed", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

// seedDefault writes one embedded template if absent. O_EXCL keeps an
// existing file untouched.
func seedDefault(dir, name string) (bool, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	data, err := defaultFS.ReadFile(filepath.Join("defaults", name))
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		return false, err
	}
	return true, nil
}
