package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/security"
	"github.com/photarium/photarium/src/photariumd/storage"
)

// ProviderConfigRepository handles provider configuration database
// operations. Secret fields inside the JSON payload are encrypted before
// the row is written and decrypted on read, so the payload at rest never
// contains plaintext credentials.
type ProviderConfigRepository struct {
	db      *Database
	secrets *security.SecretManager
}

// NewProviderConfigRepository creates a new provider config repository
func NewProviderConfigRepository(db *Database, secrets *security.SecretManager) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db, secrets: secrets}
}

// Upsert stores or replaces a provider configuration. The payload is
// validated against the provider id before anything is written.
func (r *ProviderConfigRepository) Upsert(rec *storage.Record) error {
	if _, err := rec.Decode(); err != nil {
		return err
	}

	sealed, err := r.sealSecrets(rec.ProviderID, rec.Config)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	// created_at survives replacement so the row keeps its original age
	_, err = r.db.DB().Exec(`
		INSERT INTO provider_configs (provider_id, name, enabled, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			config = excluded.config,
			updated_at = excluded.updated_at`,
		string(rec.ProviderID), rec.Name, rec.Enabled, string(sealed),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store provider config: %w", err)
	}
	return nil
}

// SetEnabled toggles a provider without touching its payload.
func (r *ProviderConfigRepository) SetEnabled(id storage.ID, enabled bool) error {
	result, err := r.db.DB().Exec(`
		UPDATE provider_configs SET enabled = ?, updated_at = ? WHERE provider_id = ?`,
		enabled, time.Now(), string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update provider config: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrProviderNotFound.WithMessagef("storage provider %s is not configured", id)
	}
	return nil
}

// Delete removes a provider configuration.
func (r *ProviderConfigRepository) Delete(id storage.ID) error {
	result, err := r.db.DB().Exec(`DELETE FROM provider_configs WHERE provider_id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete provider config: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrProviderNotFound.WithMessagef("storage provider %s is not configured", id)
	}
	return nil
}

// GetProviderConfig returns the record for a provider id with its secrets
// decrypted. Implements storage.ConfigSource.
func (r *ProviderConfigRepository) GetProviderConfig(id storage.ID) (*storage.Record, error) {
	row := r.db.DB().QueryRow(`
		SELECT provider_id, name, enabled, config, created_at, updated_at
		FROM provider_configs WHERE provider_id = ?`, string(id),
	)
	rec, err := r.scanRecord(row)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.ErrProviderNotFound.WithMessagef("storage provider %s is not configured", id)
	}
	return rec, nil
}

// ListProviderConfigs returns every stored record with secrets decrypted.
// Implements storage.ConfigSource.
func (r *ProviderConfigRepository) ListProviderConfigs() ([]*storage.Record, error) {
	rows, err := r.db.DB().Query(`
		SELECT provider_id, name, enabled, config, created_at, updated_at
		FROM provider_configs ORDER BY provider_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider configs: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		var (
			rec       storage.Record
			id        string
			rawConfig string
		)
		if err := rows.Scan(&id, &rec.Name, &rec.Enabled, &rawConfig, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan provider config: %w", err)
		}
		rec.ProviderID = storage.ID(id)
		opened, err := r.openSecrets(rec.ProviderID, json.RawMessage(rawConfig))
		if err != nil {
			return nil, err
		}
		rec.Config = opened
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// scanRecord scans a single row into a storage.Record
func (r *ProviderConfigRepository) scanRecord(row *sql.Row) (*storage.Record, error) {
	var (
		rec       storage.Record
		id        string
		rawConfig string
	)
	err := row.Scan(&id, &rec.Name, &rec.Enabled, &rawConfig, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider config: %w", err)
	}
	rec.ProviderID = storage.ID(id)
	opened, err := r.openSecrets(rec.ProviderID, json.RawMessage(rawConfig))
	if err != nil {
		return nil, err
	}
	rec.Config = opened
	return &rec, nil
}

// sealSecrets encrypts the secret fields of a config payload.
func (r *ProviderConfigRepository) sealSecrets(id storage.ID, payload json.RawMessage) (json.RawMessage, error) {
	fields := storage.SecretFields(id)
	if len(fields) == 0 || r.secrets == nil {
		return payload, nil
	}
	return r.transformSecrets(payload, fields, func(v string) (string, error) {
		if r.secrets.IsEncrypted(v) {
			return v, nil
		}
		return r.secrets.Encrypt(v)
	})
}

// openSecrets decrypts the secret fields of a config payload.
func (r *ProviderConfigRepository) openSecrets(id storage.ID, payload json.RawMessage) (json.RawMessage, error) {
	fields := storage.SecretFields(id)
	if len(fields) == 0 || r.secrets == nil {
		return payload, nil
	}
	return r.transformSecrets(payload, fields, func(v string) (string, error) {
		if !r.secrets.IsEncrypted(v) {
			return v, nil
		}
		return r.secrets.Decrypt(v)
	})
}

func (r *ProviderConfigRepository) transformSecrets(payload json.RawMessage, fields []string, fn func(string) (string, error)) (json.RawMessage, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse provider config payload: %w", err)
	}

	for _, field := range fields {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		transformed, err := fn(value)
		if err != nil {
			return nil, fmt.Errorf("failed to transform secret field %s: %w", field, err)
		}
		doc[field] = transformed
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider config payload: %w", err)
	}
	return out, nil
}
