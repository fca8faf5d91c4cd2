package migrations

import (
	"database/sql"
	"fmt"
)

// migration001InitialSchema creates the core photarium tables
func migration001InitialSchema() Migration {
	return Migration{
		Version:     1,
		Description: "Create groups, users, provider_configs, albums, photos and settings tables",
		Up:          migration001Up,
	}
}

func migration001Up(tx *sql.Tx) error {
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
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (parent_album_id) REFERENCES albums(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_albums_parent ON albums(parent_album_id);

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

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("failed to create initial schema: %w", err)
	}
	return nil
}
