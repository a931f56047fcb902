package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

const (
	keyPromptTemplatePrefix = "prompt_template."
	keyCredentials          = "credentials"
	keyRotationCursor       = "rotation_cursor"
)

// SettingsRepository stores screening configuration as key/value rows so
// prompt edits and credential changes never touch record data.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute settings ddl: %w", err)
	}
	return nil
}

// SeedDefaults inserts the given prompt templates without overwriting
// operator edits.
func (r *SettingsRepository) SeedDefaults(ctx context.Context, templates map[domain.Stage]string) error {
	for stage, template := range templates {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			keyPromptTemplatePrefix+string(stage), template,
		)
		if err != nil {
			return fmt.Errorf("seed prompt template %s: %w", stage, err)
		}
	}
	return nil
}

func (r *SettingsRepository) PromptTemplate(ctx context.Context, stage domain.Stage) (string, error) {
	return r.get(ctx, keyPromptTemplatePrefix+string(stage))
}

func (r *SettingsRepository) SetPromptTemplate(ctx context.Context, stage domain.Stage, template string) error {
	return r.set(ctx, keyPromptTemplatePrefix+string(stage), template)
}

func (r *SettingsRepository) Credentials(ctx context.Context) ([]string, error) {
	raw, err := r.get(ctx, keyCredentials)
	if err != nil {
		if domain.IsKind(err, domain.ErrSettingNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var creds []string
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}

func (r *SettingsRepository) SetCredentials(ctx context.Context, creds []string) error {
	if creds == nil {
		creds = []string{}
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	return r.set(ctx, keyCredentials, string(raw))
}

func (r *SettingsRepository) RotationCursor(ctx context.Context) (int, error) {
	raw, err := r.get(ctx, keyRotationCursor)
	if err != nil {
		if domain.IsKind(err, domain.ErrSettingNotFound) {
			return 0, nil
		}
		return 0, err
	}
	cursor, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse rotation cursor %q: %w", raw, err)
	}
	return cursor, nil
}

func (r *SettingsRepository) SetRotationCursor(ctx context.Context, cursor int) error {
	return r.set(ctx, keyRotationCursor, strconv.Itoa(cursor))
}

func (r *SettingsRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrSettingNotFound, "get setting", fmt.Errorf("key %s", key))
		}
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *SettingsRepository) set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
