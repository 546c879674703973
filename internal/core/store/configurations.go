package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/metrics"
)

const configurationColumns = `id, provider, api_key, base_url, model_id, assigned_roles, owner_id, created_at, updated_at`

// FindDedicated returns the earliest configuration of ownerID dedicated to role.
// The SQL predicate only narrows the candidates; membership is decided by
// RoleSet.Contains on the parsed list, so "chat" never matches "chatbot" and
// rows written as "Chat, summarize" still match "chat".
func (s *Store) FindDedicated(ctx context.Context, ownerID string, role ailink.Role) (*ailink.Configuration, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	role = ailink.NormalizeRole(role)
	if !ailink.ValidRole(role) {
		return nil, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+configurationColumns+`
		FROM ai_configurations
		WHERE owner_id = ?
		  AND instr(lower(assigned_roles), ?) > 0
		ORDER BY created_at ASC, id ASC
	`, ownerID, string(role))
	if err != nil {
		return nil, fmt.Errorf("find dedicated configuration: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		if cfg.AssignedRoles.Contains(role) {
			return cfg, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find dedicated configuration: %w", err)
	}
	return nil, nil
}

// FindEarliest returns the oldest configuration owned by ownerID.
func (s *Store) FindEarliest(ctx context.Context, ownerID string) (*ailink.Configuration, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT `+configurationColumns+`
		FROM ai_configurations
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, ownerID)

	return scanOptional(row)
}

// CreateConfiguration inserts cfg, assigning an ID and timestamps when unset.
func (s *Store) CreateConfiguration(ctx context.Context, cfg *ailink.Configuration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if cfg == nil {
		return errors.New("configuration is required")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = cfg.CreatedAt

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO ai_configurations (`+configurationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cfg.ID, cfg.Provider, cfg.APIKey, nullableString(cfg.BaseURL), cfg.ModelID,
		cfg.AssignedRoles.String(), cfg.OwnerID, cfg.CreatedAt.UnixNano(), cfg.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store configuration: %w", err)
	}
	metrics.RecordConfigurationWrite("create")
	return nil
}

// GetConfiguration returns a configuration by ID, or nil when absent.
func (s *Store) GetConfiguration(ctx context.Context, id string) (*ailink.Configuration, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("configuration id is required")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT `+configurationColumns+`
		FROM ai_configurations
		WHERE id = ?
	`, id)
	return scanOptional(row)
}

// ListConfigurations returns configurations in creation order. An empty ownerID lists all.
func (s *Store) ListConfigurations(ctx context.Context, ownerID string) ([]ailink.Configuration, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	query := `SELECT ` + configurationColumns + ` FROM ai_configurations`
	var args []any
	if owner := strings.TrimSpace(ownerID); owner != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY owner_id ASC, created_at ASC, id ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var configs []ailink.Configuration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// UpdateConfiguration replaces the mutable fields of an existing configuration.
// Owner and creation time are preserved.
func (s *Store) UpdateConfiguration(ctx context.Context, cfg *ailink.Configuration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if cfg == nil || strings.TrimSpace(cfg.ID) == "" {
		return errors.New("configuration id is required")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()

	result, err := s.DB.ExecContext(ctx, `
		UPDATE ai_configurations
		SET provider = ?, api_key = ?, base_url = ?, model_id = ?, assigned_roles = ?, updated_at = ?
		WHERE id = ?
	`, cfg.Provider, cfg.APIKey, nullableString(cfg.BaseURL), cfg.ModelID,
		cfg.AssignedRoles.String(), cfg.UpdatedAt.UnixNano(), cfg.ID)
	if err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}
	if err := requireAffected(result, cfg.ID); err != nil {
		return err
	}
	metrics.RecordConfigurationWrite("update")
	return nil
}

// DeleteConfiguration removes a configuration by ID.
func (s *Store) DeleteConfiguration(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	id = strings.TrimSpace(id)

	result, err := s.DB.ExecContext(ctx, `DELETE FROM ai_configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete configuration: %w", err)
	}
	if err := requireAffected(result, id); err != nil {
		return err
	}
	metrics.RecordConfigurationWrite("delete")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptional(row *sql.Row) (*ailink.Configuration, error) {
	cfg, err := scanConfiguration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

func scanConfiguration(row rowScanner) (*ailink.Configuration, error) {
	var (
		cfg       ailink.Configuration
		baseURL   sql.NullString
		roles     string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&cfg.ID, &cfg.Provider, &cfg.APIKey, &baseURL, &cfg.ModelID, &roles, &cfg.OwnerID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan configuration: %w", err)
	}
	if baseURL.Valid {
		cfg.BaseURL = ailink.StringPtr(baseURL.String)
	}
	cfg.AssignedRoles = ailink.ParseRoleSet(roles)
	cfg.CreatedAt = time.Unix(0, createdAt).UTC()
	cfg.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &cfg, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ailink.ErrConfigurationNotFound, id)
	}
	return nil
}
