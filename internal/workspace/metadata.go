package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata is the per-work descriptor stored as metadata.json.
type Metadata struct {
	WorkID    string `json:"work_id"`
	CreatedAt string `json:"created_at"`
	Version   string `json:"version"`
}

func (w *Workspace) metadataPath() string {
	return filepath.Join(w.root, "metadata.json")
}

func (w *Workspace) ensureMetadata() error {
	path := w.metadataPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	md := Metadata{
		WorkID:    w.workID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Version:   "2.0",
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("workspace: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("workspace: write metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads metadata.json.
func (w *Workspace) ReadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(w.metadataPath())
	if err != nil {
		return nil, fmt.Errorf("workspace: read metadata: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("workspace: parse metadata: %w", err)
	}
	return &md, nil
}
