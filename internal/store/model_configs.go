package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Model roles. Each user carries one configuration per role.
const (
	RoleBrain   = "brain"   // planner
	RoleCode    = "code"    // code agent
	RoleWriting = "writing" // writer agent
)

// ModelConfig is one (user, role) LLM configuration.
type ModelConfig struct {
	UserID   string
	Role     string
	Provider string
	ModelID  string
	BaseURL  string
	APIKey   string
	IsActive bool
}

// GetModelConfig returns the active configuration for (userID, role).
// A missing or inactive row is an error so callers fail before any LLM call.
func (s *Store) GetModelConfig(userID, role string) (*ModelConfig, error) {
	row := s.db.QueryRow(
		`SELECT user_id, role, provider, model_id, base_url, api_key, is_active
		 FROM model_configs WHERE user_id = ? AND role = ?`, userID, role)

	var mc ModelConfig
	var active int
	err := row.Scan(&mc.UserID, &mc.Role, &mc.Provider, &mc.ModelID, &mc.BaseURL, &mc.APIKey, &active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no %s model configured for user %s: %w", role, userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get model config: %w", err)
	}
	mc.IsActive = active != 0
	if !mc.IsActive {
		return nil, fmt.Errorf("%s model for user %s is disabled", role, userID)
	}
	return &mc, nil
}

// HasModelConfig reports whether an active config exists for (userID, role).
func (s *Store) HasModelConfig(userID, role string) bool {
	_, err := s.GetModelConfig(userID, role)
	return err == nil
}

// UpsertModelConfig inserts or replaces the configuration for (userID, role).
func (s *Store) UpsertModelConfig(mc *ModelConfig) error {
	active := 0
	if mc.IsActive {
		active = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO model_configs (user_id, role, provider, model_id, base_url, api_key, is_active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, role) DO UPDATE SET
		   provider = excluded.provider,
		   model_id = excluded.model_id,
		   base_url = excluded.base_url,
		   api_key = excluded.api_key,
		   is_active = excluded.is_active,
		   updated_at = excluded.updated_at`,
		mc.UserID, mc.Role, mc.Provider, mc.ModelID, mc.BaseURL, mc.APIKey, active,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: upsert model config: %w", err)
	}
	return nil
}
