package migrations

import (
	"database/sql"
	"fmt"
)

// migration002AlbumVisibilityGrants adds per-group and per-user visibility
// grant columns to albums
func migration002AlbumVisibilityGrants() Migration {
	return Migration{
		Version:     2,
		Description: "Add allowed_groups and allowed_users grant columns to albums",
		Up:          migration002Up,
	}
}

func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE albums ADD COLUMN allowed_groups TEXT NOT NULL DEFAULT '[]'
	`)
	if err != nil {
		return fmt.Errorf("failed to add allowed_groups column: %w", err)
	}

	_, err = tx.Exec(`
		ALTER TABLE albums ADD COLUMN allowed_users TEXT NOT NULL DEFAULT '[]'
	`)
	if err != nil {
		return fmt.Errorf("failed to add allowed_users column: %w", err)
	}

	return nil
}
