package migrations

import (
	"database/sql"
	"fmt"
)

// migration003PhotoCountCache adds the cached direct photo count to albums
// and backfills it from the photos table
func migration003PhotoCountCache() Migration {
	return Migration{
		Version:     3,
		Description: "Add photo_count cache column to albums and backfill from photos",
		Up:          migration003Up,
	}
}

func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE albums ADD COLUMN photo_count INTEGER NOT NULL DEFAULT 0
	`)
	if err != nil {
		return fmt.Errorf("failed to add photo_count column: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE albums SET photo_count =
			(SELECT COUNT(*) FROM photos WHERE photos.album_id = albums.id)
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill photo counts: %w", err)
	}

	// Sibling ordering reads benefit from a composite index
	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_albums_sort ON albums(parent_album_id, sort_order)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sort index: %w", err)
	}

	return nil
}
