package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/gallery"
)

// PhotoRepository handles photo database operations
type PhotoRepository struct {
	db *Database
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *Database) *PhotoRepository {
	return &PhotoRepository{db: db}
}

const photoColumns = `id, album_id, title, provider, path, content_type,
	size_bytes, sort_order, is_published, taken_at, created_at`

// Create inserts a new photo and refreshes the album's cached direct count.
func (r *PhotoRepository) Create(photo *gallery.Photo) error {
	if photo.AlbumID == "" {
		return apperrors.ErrInvalidJSON.WithMessage("photo requires an album id")
	}
	if photo.Provider == "" || photo.Path == "" {
		return apperrors.ErrValidationFailed.WithMessage("photo requires a provider and path")
	}
	if photo.ID == "" {
		photo.ID = uuid.New().String()
	}
	photo.CreatedAt = time.Now()

	var takenAt interface{}
	if !photo.TakenAt.IsZero() {
		takenAt = photo.TakenAt
	}

	_, err := r.db.DB().Exec(`
		INSERT INTO photos (`+photoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		photo.ID, photo.AlbumID, photo.Title, photo.Provider, photo.Path,
		photo.ContentType, photo.Size, photo.SortOrder, photo.IsPublished,
		takenAt, photo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}

	r.refreshAlbumCount(photo.AlbumID)
	return nil
}

// GetByID retrieves a photo by id
func (r *PhotoRepository) GetByID(id string) (*gallery.Photo, error) {
	row := r.db.DB().QueryRow(`
		SELECT `+photoColumns+` FROM photos WHERE id = ?`, id,
	)
	photo, err := scanPhotoFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPhotoNotFound.WithMessagef("photo not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// GetByStoredPath resolves the photo that owns a stored object. Serving
// routes use it to find the album whose visibility gates the bytes.
func (r *PhotoRepository) GetByStoredPath(provider, path string) (*gallery.Photo, error) {
	row := r.db.DB().QueryRow(`
		SELECT `+photoColumns+` FROM photos WHERE provider = ? AND path = ?`,
		provider, path,
	)
	photo, err := scanPhotoFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPhotoNotFound.WithMessagef("no photo stored at %s:%s", provider, path)
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// ListByAlbum returns the photos directly inside an album
func (r *PhotoRepository) ListByAlbum(albumID string) ([]*gallery.Photo, error) {
	rows, err := r.db.DB().Query(`
		SELECT `+photoColumns+` FROM photos
		WHERE album_id = ? ORDER BY sort_order ASC, created_at ASC`, albumID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*gallery.Photo
	for rows.Next() {
		photo, err := scanPhotoFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// CountPhotos implements gallery.PhotoSource for the recursive counter.
// Only published photos count.
func (r *PhotoRepository) CountPhotos(ctx context.Context, albumID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count int
	err := r.db.DB().QueryRow(
		`SELECT COUNT(*) FROM photos WHERE album_id = ? AND is_published = 1`, albumID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return count, nil
}

// Update modifies a photo's metadata. Provider and path are immutable; a
// photo moves between albums but its stored object does not move.
func (r *PhotoRepository) Update(photo *gallery.Photo) error {
	prev, err := r.GetByID(photo.ID)
	if err != nil {
		return err
	}

	result, err := r.db.DB().Exec(`
		UPDATE photos SET album_id = ?, title = ?, sort_order = ?,
			is_published = ?, taken_at = ?
		WHERE id = ?`,
		photo.AlbumID, photo.Title, photo.SortOrder, photo.IsPublished,
		nullableTime(photo.TakenAt), photo.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update photo: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrPhotoNotFound.WithMessagef("photo not found: %s", photo.ID)
	}

	if prev.AlbumID != photo.AlbumID || prev.IsPublished != photo.IsPublished {
		r.refreshAlbumCount(prev.AlbumID)
		r.refreshAlbumCount(photo.AlbumID)
	}
	return nil
}

// Delete removes a photo row. The stored object is the caller's problem;
// the API deletes it through the storage manager first.
func (r *PhotoRepository) Delete(id string) error {
	photo, err := r.GetByID(id)
	if err != nil {
		return err
	}

	result, err := r.db.DB().Exec(`DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrPhotoNotFound.WithMessagef("photo not found: %s", id)
	}

	r.refreshAlbumCount(photo.AlbumID)
	return nil
}

// refreshAlbumCount rewrites the cached direct photo count of an album.
// The cache only seeds listings, so a failed refresh is logged away by the
// next successful write rather than failing the photo operation.
func (r *PhotoRepository) refreshAlbumCount(albumID string) {
	r.db.DB().Exec(`
		UPDATE albums SET photo_count =
			(SELECT COUNT(*) FROM photos WHERE album_id = ? AND is_published = 1)
		WHERE id = ?`, albumID, albumID,
	)
}

func scanPhotoFrom(scan func(...interface{}) error) (*gallery.Photo, error) {
	var (
		photo       gallery.Photo
		title       sql.NullString
		contentType sql.NullString
		takenAt     sql.NullTime
	)
	err := scan(
		&photo.ID, &photo.AlbumID, &title, &photo.Provider, &photo.Path,
		&contentType, &photo.Size, &photo.SortOrder, &photo.IsPublished,
		&takenAt, &photo.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan photo: %w", err)
	}
	photo.Title = title.String
	photo.ContentType = contentType.String
	if takenAt.Valid {
		photo.TakenAt = takenAt.Time
	}
	return &photo, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
