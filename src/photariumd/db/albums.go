package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/gallery"
)

// AlbumRepository handles album database operations
type AlbumRepository struct {
	db *Database
}

// NewAlbumRepository creates a new album repository
func NewAlbumRepository(db *Database) *AlbumRepository {
	return &AlbumRepository{db: db}
}

const albumColumns = `id, name, description, parent_album_id, sort_order, cover_photo_id,
	is_public, allowed_groups, allowed_users, photo_count, created_at, updated_at`

// Create inserts a new album. A parent id, when set, must exist and must
// not introduce a cycle.
func (r *AlbumRepository) Create(album *gallery.Album) error {
	if album.Name == "" {
		return apperrors.ErrInvalidAlbumData.WithMessage("album name is required")
	}
	if album.ID == "" {
		album.ID = uuid.New().String()
	}
	if album.ParentAlbumID != "" {
		if err := r.checkParent(album.ID, album.ParentAlbumID); err != nil {
			return err
		}
	}
	album.CreatedAt = time.Now()
	album.UpdatedAt = album.CreatedAt

	groups, users := marshalGrants(album)
	_, err := r.db.DB().Exec(`
		INSERT INTO albums (`+albumColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		album.ID, album.Name, album.Description, nullable(album.ParentAlbumID),
		album.SortOrder, nullable(album.CoverPhotoID),
		album.Visibility.IsPublic, groups, users,
		album.PhotoCount, album.CreatedAt, album.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create album: %w", err)
	}
	return nil
}

// GetByID retrieves an album by id
func (r *AlbumRepository) GetByID(id string) (*gallery.Album, error) {
	row := r.db.DB().QueryRow(`
		SELECT `+albumColumns+` FROM albums WHERE id = ?`, id,
	)
	album, err := r.scanAlbum(row)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, apperrors.ErrAlbumNotFound.WithMessagef("album not found: %s", id)
	}
	return album, nil
}

// List returns every album, parents before children within each sort group
func (r *AlbumRepository) List() ([]*gallery.Album, error) {
	return r.queryAlbums(`SELECT ` + albumColumns + ` FROM albums ORDER BY sort_order ASC, name ASC`)
}

// ListChildren returns the direct children of an album
func (r *AlbumRepository) ListChildren(parentID string) ([]*gallery.Album, error) {
	return r.queryAlbums(`
		SELECT `+albumColumns+` FROM albums
		WHERE parent_album_id = ? ORDER BY sort_order ASC, name ASC`, parentID)
}

// ListRoots returns albums with no parent
func (r *AlbumRepository) ListRoots() ([]*gallery.Album, error) {
	return r.queryAlbums(`
		SELECT ` + albumColumns + ` FROM albums
		WHERE parent_album_id IS NULL ORDER BY sort_order ASC, name ASC`)
}

// ChildAlbums implements gallery.AlbumSource for the recursive counter.
func (r *AlbumRepository) ChildAlbums(ctx context.Context, albumID string) ([]*gallery.Album, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ListChildren(albumID)
}

// Update modifies an existing album
func (r *AlbumRepository) Update(album *gallery.Album) error {
	if album.Name == "" {
		return apperrors.ErrInvalidAlbumData.WithMessage("album name is required")
	}
	if album.ParentAlbumID != "" {
		if err := r.checkParent(album.ID, album.ParentAlbumID); err != nil {
			return err
		}
	}
	album.UpdatedAt = time.Now()

	groups, users := marshalGrants(album)
	result, err := r.db.DB().Exec(`
		UPDATE albums SET name = ?, description = ?, parent_album_id = ?,
			sort_order = ?, cover_photo_id = ?, is_public = ?,
			allowed_groups = ?, allowed_users = ?, updated_at = ?
		WHERE id = ?`,
		album.Name, album.Description, nullable(album.ParentAlbumID),
		album.SortOrder, nullable(album.CoverPhotoID),
		album.Visibility.IsPublic, groups, users, album.UpdatedAt, album.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update album: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrAlbumNotFound.WithMessagef("album not found: %s", album.ID)
	}
	return nil
}

// Delete removes an album. Nested albums are detached to the root level by
// the schema; photos inside the album are removed with it.
func (r *AlbumRepository) Delete(id string) error {
	result, err := r.db.DB().Exec(`DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrAlbumNotFound.WithMessagef("album not found: %s", id)
	}
	return nil
}

// ReorderItem is one entry of a batch reorder request.
type ReorderItem struct {
	AlbumID   string `json:"albumId"`
	SortOrder int    `json:"sortOrder"`
}

// ReorderFailure reports one reorder entry that could not be applied.
type ReorderFailure struct {
	AlbumID string `json:"albumId"`
	Reason  string `json:"reason"`
}

// ReorderBatch applies sort-order updates without ordering guarantees
// between entries. Entries naming unknown albums are collected and
// reported; they do not abort the rest of the batch.
func (r *AlbumRepository) ReorderBatch(items []ReorderItem) ([]ReorderFailure, error) {
	var failures []ReorderFailure
	now := time.Now()

	for _, item := range items {
		result, err := r.db.DB().Exec(`
			UPDATE albums SET sort_order = ?, updated_at = ? WHERE id = ?`,
			item.SortOrder, now, item.AlbumID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reorder album %s: %w", item.AlbumID, err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			failures = append(failures, ReorderFailure{
				AlbumID: item.AlbumID,
				Reason:  "album not found",
			})
		}
	}
	return failures, nil
}

// SetPhotoCount refreshes the cached direct photo count of an album.
func (r *AlbumRepository) SetPhotoCount(id string, count int) error {
	_, err := r.db.DB().Exec(`
		UPDATE albums SET photo_count = ? WHERE id = ?`, count, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update photo count: %w", err)
	}
	return nil
}

// checkParent verifies the parent exists and that attaching albumID under
// it cannot close a cycle.
func (r *AlbumRepository) checkParent(albumID, parentID string) error {
	if albumID == parentID {
		return apperrors.ErrAlbumCycle.WithMessage("album cannot be its own parent")
	}

	current := parentID
	for depth := 0; current != ""; depth++ {
		if depth > 100 {
			return apperrors.ErrAlbumCycle.WithMessage("album nesting too deep")
		}
		if current == albumID {
			return apperrors.ErrAlbumCycle.
				WithMessagef("album %s is a descendant of %s", parentID, albumID)
		}

		var next sql.NullString
		err := r.db.DB().QueryRow(
			`SELECT parent_album_id FROM albums WHERE id = ?`, current,
		).Scan(&next)
		if err == sql.ErrNoRows {
			if current == parentID {
				return apperrors.ErrAlbumNotFound.
					WithMessagef("parent album not found: %s", parentID)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to walk album ancestry: %w", err)
		}
		current = next.String
	}
	return nil
}

func (r *AlbumRepository) queryAlbums(query string, args ...interface{}) ([]*gallery.Album, error) {
	rows, err := r.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []*gallery.Album
	for rows.Next() {
		album, err := scanAlbumRow(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, rows.Err()
}

func (r *AlbumRepository) scanAlbum(row *sql.Row) (*gallery.Album, error) {
	album, err := scanAlbumFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return album, err
}

func scanAlbumRow(rows *sql.Rows) (*gallery.Album, error) {
	return scanAlbumFrom(rows.Scan)
}

func scanAlbumFrom(scan func(...interface{}) error) (*gallery.Album, error) {
	var (
		album      gallery.Album
		parent     sql.NullString
		cover      sql.NullString
		desc       sql.NullString
		groupsJSON string
		usersJSON  string
	)
	err := scan(
		&album.ID, &album.Name, &desc, &parent, &album.SortOrder, &cover,
		&album.Visibility.IsPublic, &groupsJSON, &usersJSON,
		&album.PhotoCount, &album.CreatedAt, &album.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}
	album.Description = desc.String
	album.ParentAlbumID = parent.String
	album.CoverPhotoID = cover.String
	album.Visibility.AllowedGroups = unmarshalStrings(groupsJSON)
	album.Visibility.AllowedUsers = unmarshalStrings(usersJSON)
	return &album, nil
}

func marshalGrants(album *gallery.Album) (groups, users string) {
	return marshalStrings(album.Visibility.AllowedGroups),
		marshalStrings(album.Visibility.AllowedUsers)
}

func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
