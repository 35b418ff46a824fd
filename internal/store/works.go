package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Work output modes.
const (
	OutputMarkdown = "markdown"
	OutputWord     = "word"
	OutputLatex    = "latex"
)

// Work is the metadata row for one paper-generation effort. External
// collaborators (the CRUD API) own these rows; the core reads them and only
// writes back the generated title.
type Work struct {
	ID         string
	UserID     string
	Title      string
	TemplateID string
	OutputMode string
	Status     string
	CreatedAt  time.Time
}

// GetWork returns a work row by id.
func (s *Store) GetWork(id string) (*Work, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, title, template_id, output_mode, status, created_at
		 FROM works WHERE id = ?`, id)

	var w Work
	var created string
	err := row.Scan(&w.ID, &w.UserID, &w.Title, &w.TemplateID, &w.OutputMode, &w.Status, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get work: %w", err)
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &w, nil
}

// CreateWork inserts a work row. Used by the management surface and tests.
func (s *Store) CreateWork(w *Work) error {
	if w.OutputMode == "" {
		w.OutputMode = OutputMarkdown
	}
	if w.Status == "" {
		w.Status = "active"
	}
	_, err := s.db.Exec(
		`INSERT INTO works (id, user_id, title, template_id, output_mode, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Title, w.TemplateID, w.OutputMode, w.Status,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: create work: %w", err)
	}
	return nil
}

// SetWorkTitle stores a generated title on an untitled work.
func (s *Store) SetWorkTitle(id, title string) error {
	_, err := s.db.Exec(`UPDATE works SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("store: set work title: %w", err)
	}
	return nil
}

// OwnsWork reports whether userID owns the work.
func (s *Store) OwnsWork(userID, workID string) (bool, error) {
	w, err := s.GetWork(workID)
	if err != nil {
		return false, err
	}
	return w.UserID == userID, nil
}
