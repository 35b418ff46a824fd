package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ValidateToken resolves an auth token to a user id. Expired and unknown
// tokens fail.
func (s *Store) ValidateToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}

	row := s.db.QueryRow(`SELECT user_id, expires_at FROM auth_tokens WHERE token = ?`, token)
	var userID, expires string
	err := row.Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("invalid token")
	}
	if err != nil {
		return "", fmt.Errorf("store: validate token: %w", err)
	}

	if expires != "" {
		t, err := time.Parse(time.RFC3339, expires)
		if err == nil && time.Now().After(t) {
			return "", fmt.Errorf("token expired")
		}
	}
	return userID, nil
}

// PutToken stores an auth token for a user. expiresAt may be zero for
// non-expiring tokens. Used by the management surface and tests.
func (s *Store) PutToken(token, userID string, expiresAt time.Time) error {
	expires := ""
	if !expiresAt.IsZero() {
		expires = expiresAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO auth_tokens (token, user_id, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (token) DO UPDATE SET user_id = excluded.user_id, expires_at = excluded.expires_at`,
		token, userID, expires)
	if err != nil {
		return fmt.Errorf("store: put token: %w", err)
	}
	return nil
}
