package storage

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// Record is a persisted provider configuration row. The Config payload is a
// JSON document whose shape depends on ProviderID; secret fields inside it
// are encrypted at rest by the repository layer before the row is written.
type Record struct {
	ProviderID ID              `json:"providerId"`
	Name       string          `json:"name"`
	Enabled    bool            `json:"enabled"`
	Config     json.RawMessage `json:"config"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// LocalConfig configures the local filesystem provider.
type LocalConfig struct {
	BasePath string `json:"basePath"`
}

// DriveStorageMode selects how the drive provider organizes uploads.
type DriveStorageMode string

const (
	// DriveFlat places every upload directly in the configured root folder
	DriveFlat DriveStorageMode = "flat"
	// DriveNested mirrors the logical path as a folder hierarchy
	DriveNested DriveStorageMode = "nested"
)

// DriveConfig configures the OAuth2 drive provider.
type DriveConfig struct {
	ClientID     string           `json:"clientId"`
	ClientSecret string           `json:"clientSecret"`
	RefreshToken string           `json:"refreshToken"`
	FolderID     string           `json:"folderId,omitempty"`
	StorageMode  DriveStorageMode `json:"storageMode,omitempty"`

	// AuthURL and TokenURL override the OAuth2 endpoints, mainly for tests
	// and self-hosted drive deployments. Empty selects the defaults.
	AuthURL  string `json:"authUrl,omitempty"`
	TokenURL string `json:"tokenUrl,omitempty"`
	// APIBase overrides the drive REST API base URL
	APIBase string `json:"apiBase,omitempty"`
}

// ObjectStoreConfig configures an S3-compatible provider.
type ObjectStoreConfig struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	// Endpoint overrides the service endpoint for S3-compatible stores
	Endpoint string `json:"endpoint,omitempty"`
}

// Config is the decoded form of a Record payload. Exactly one member is
// non-nil, matching the record's provider id.
type Config struct {
	Local  *LocalConfig
	Drive  *DriveConfig
	Object *ObjectStoreConfig
}

// Decode parses and validates the record's JSON payload against its
// provider id.
func (r *Record) Decode() (*Config, error) {
	if !Known(r.ProviderID) {
		return nil, errInvalidConfig(r.ProviderID, "unknown provider id")
	}
	if len(r.Config) == 0 {
		return nil, errInvalidConfig(r.ProviderID, "empty configuration payload")
	}

	switch r.ProviderID {
	case Local:
		var cfg LocalConfig
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return nil, errInvalidConfigCause(r.ProviderID, "malformed configuration payload", err)
		}
		if cfg.BasePath == "" {
			return nil, errInvalidConfig(r.ProviderID, "basePath is required")
		}
		return &Config{Local: &cfg}, nil

	case Drive:
		var cfg DriveConfig
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return nil, errInvalidConfigCause(r.ProviderID, "malformed configuration payload", err)
		}
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, errInvalidConfig(r.ProviderID, "clientId and clientSecret are required")
		}
		if cfg.StorageMode == "" {
			cfg.StorageMode = DriveFlat
		}
		if cfg.StorageMode != DriveFlat && cfg.StorageMode != DriveNested {
			return nil, errInvalidConfig(r.ProviderID, fmt.Sprintf("unsupported storage mode %q", cfg.StorageMode))
		}
		return &Config{Drive: &cfg}, nil

	case S3Main, S3Cold:
		var cfg ObjectStoreConfig
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return nil, errInvalidConfigCause(r.ProviderID, "malformed configuration payload", err)
		}
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, errInvalidConfig(r.ProviderID, "accessKeyId and secretAccessKey are required")
		}
		if cfg.Bucket == "" {
			return nil, errInvalidConfig(r.ProviderID, "bucket is required")
		}
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		return &Config{Object: &cfg}, nil
	}

	return nil, errInvalidConfig(r.ProviderID, "unknown provider id")
}

// SecretFields returns the JSON field names carrying secrets for a provider
// variant. The repository encrypts exactly these fields before persisting a
// record and decrypts them on read.
func SecretFields(id ID) []string {
	switch id {
	case Drive:
		return []string{"clientSecret", "refreshToken"}
	case S3Main, S3Cold:
		return []string{"secretAccessKey"}
	}
	return nil
}

func errInvalidConfig(id ID, msg string) error {
	return apperrors.ErrInvalidProviderConfig.WithMessagef("provider %s: %s", id, msg)
}

func errInvalidConfigCause(id ID, msg string, cause error) error {
	return apperrors.ErrInvalidProviderConfig.WithMessagef("provider %s: %s", id, msg).WithCause(cause)
}
