// Package db provides database functionality for photariumd with in-memory
// SQLite and automatic persistence to disk on shutdown or crash.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/photarium/photarium/src/common/paths"
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the SQLite connection with persistence capabilities
type Database struct {
	db           *sql.DB
	persistPath  string
	mu           sync.RWMutex
	shutdownOnce sync.Once
}

// Config holds the database configuration
type Config struct {
	// PersistPath is the file path where the database will be saved on shutdown
	PersistPath string
	// LoadOnStart determines whether to load existing data from disk on startup
	LoadOnStart bool
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		PersistPath: "~/.photariumd/photarium.db",
		LoadOnStart: true,
	}
}

// New creates a new in-memory database with persistence support
func New(cfg Config) (*Database, error) {
	persistPath := paths.Expand(cfg.PersistPath)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{
		db:          db,
		persistPath: persistPath,
	}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Load existing data from disk if configured and file exists
	if cfg.LoadOnStart && persistPath != "" {
		if _, err := os.Stat(persistPath); err == nil {
			if err := database.LoadFromDisk(); err != nil {
				// Log warning but don't fail - start fresh
				fmt.Fprintf(os.Stderr, "warning: failed to load database from disk: %v\n", err)
			}
		}
	}

	// Note: Signal handling for graceful shutdown is managed by the server
	// (core/server.go) to avoid race conditions with multiple signal handlers

	return database, nil
}

// initSchema creates the database tables
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		alias TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_groups_alias ON groups(alias);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'guest',
		group_aliases TEXT NOT NULL DEFAULT '[]',
		allowed_providers TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		revoked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_revoked_tokens_user_id ON revoked_tokens(user_id);
	CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at);

	CREATE TABLE IF NOT EXISTS provider_configs (
		provider_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT 0,
		config TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		parent_album_id TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		cover_photo_id TEXT,
		is_public BOOLEAN NOT NULL DEFAULT 0,
		allowed_groups TEXT NOT NULL DEFAULT '[]',
		allowed_users TEXT NOT NULL DEFAULT '[]',
		photo_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (parent_album_id) REFERENCES albums(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_albums_parent ON albums(parent_album_id);
	CREATE INDEX IF NOT EXISTS idx_albums_sort ON albums(parent_album_id, sort_order);

	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		album_id TEXT NOT NULL,
		title TEXT,
		provider TEXT NOT NULL,
		path TEXT NOT NULL,
		content_type TEXT,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_published INTEGER NOT NULL DEFAULT 1,
		taken_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_photos_album ON photos(album_id);
	CREATE INDEX IF NOT EXISTS idx_photos_provider ON photos(provider, path);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// DB returns the underlying sql.DB for direct queries
func (d *Database) DB() *sql.DB {
	return d.db
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Shutdown persists the database to disk and closes the connection
func (d *Database) Shutdown() error {
	var shutdownErr error

	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.persistPath != "" {
			if err := d.persistToDisk(); err != nil {
				shutdownErr = fmt.Errorf("failed to persist database: %w", err)
			}
		}

		if err := d.db.Close(); err != nil {
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%v; also failed to close database: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("failed to close database: %w", err)
			}
		}
	})

	return shutdownErr
}

// persistToDisk saves the in-memory database to the configured file path.
// Uses atomic write pattern: write to temp file, then rename to target
func (d *Database) persistToDisk() error {
	if d.persistPath == "" {
		return nil
	}

	dir := filepath.Dir(d.persistPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := d.persistPath + ".tmp"
	os.Remove(tempPath)

	query := fmt.Sprintf("VACUUM INTO '%s'", tempPath)
	if _, err := d.db.Exec(query); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to vacuum database to disk: %w", err)
	}

	if err := os.Rename(tempPath, d.persistPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename database file: %w", err)
	}

	return nil
}

// tableExistsInDiskDB checks if a table exists in the attached disk_db
func (d *Database) tableExistsInDiskDB(tableName string) bool {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM disk_db.sqlite_master
		WHERE type='table' AND name=?
	`, tableName).Scan(&count)
	return err == nil && count > 0
}

// LoadFromDisk loads data from the persisted database file into memory
func (d *Database) LoadFromDisk() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.persistPath == "" {
		return nil
	}

	diskDB, err := sql.Open("sqlite3", d.persistPath)
	if err != nil {
		return fmt.Errorf("failed to open disk database: %w", err)
	}
	defer diskDB.Close()

	attachQuery := fmt.Sprintf("ATTACH DATABASE '%s' AS disk_db", d.persistPath)
	if _, err := d.db.Exec(attachQuery); err != nil {
		return fmt.Errorf("failed to attach disk database: %w", err)
	}
	defer d.db.Exec("DETACH DATABASE disk_db")

	// Copy order follows foreign key dependencies: settings and groups
	// first, then users, then albums before photos.
	if d.tableExistsInDiskDB("settings") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO settings
			SELECT * FROM disk_db.settings
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	if d.tableExistsInDiskDB("groups") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO groups
			SELECT * FROM disk_db.groups
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	if d.tableExistsInDiskDB("users") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO users
			(id, name, email, password_hash, role, group_aliases, allowed_providers, created_at, updated_at)
			SELECT id, name, email, password_hash,
			       COALESCE(role, 'guest') as role,
			       COALESCE(group_aliases, '[]') as group_aliases,
			       COALESCE(allowed_providers, '[]') as allowed_providers,
			       created_at, updated_at
			FROM disk_db.users
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	if d.tableExistsInDiskDB("revoked_tokens") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO revoked_tokens
			SELECT * FROM disk_db.revoked_tokens
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	if d.tableExistsInDiskDB("provider_configs") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO provider_configs
			SELECT * FROM disk_db.provider_configs
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	if d.tableExistsInDiskDB("albums") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO albums
			(id, name, description, parent_album_id, sort_order, cover_photo_id,
			 is_public, allowed_groups, allowed_users, photo_count, created_at, updated_at)
			SELECT id, name, description, parent_album_id,
			       COALESCE(sort_order, 0) as sort_order,
			       cover_photo_id,
			       COALESCE(is_public, 0) as is_public,
			       COALESCE(allowed_groups, '[]') as allowed_groups,
			       COALESCE(allowed_users, '[]') as allowed_users,
			       COALESCE(photo_count, 0) as photo_count,
			       created_at, updated_at
			FROM disk_db.albums
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	if d.tableExistsInDiskDB("photos") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO photos
			SELECT * FROM disk_db.photos
		`); err != nil {
			// Ignore error - table structure may have changed
		}
	}

	return nil
}

// SaveToDisk manually triggers a save to disk (for periodic backups)
func (d *Database) SaveToDisk() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persistToDisk()
}

// GetSetting retrieves a setting value by key
func (d *Database) GetSetting(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting stores or updates a setting value
func (d *Database) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// GetAllSettings retrieves all settings as a map
func (d *Database) GetAllSettings() (map[string]string, error) {
	rows, err := d.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return settings, nil
}
