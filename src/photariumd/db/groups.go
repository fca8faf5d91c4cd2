package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// GroupEntry represents a sharing group. Albums grant visibility to groups
// by alias, so aliases are stable handles while names stay editable.
type GroupEntry struct {
	ID          string    `json:"id"`
	Alias       string    `json:"alias"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupRepository handles group database operations
type GroupRepository struct {
	db *Database
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *Database) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a new group
func (r *GroupRepository) Create(entry *GroupEntry) error {
	if entry.Alias == "" || entry.Name == "" {
		return apperrors.ErrValidationFailed.WithMessage("group alias and name are required")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	_, err := r.db.DB().Exec(`
		INSERT INTO groups (id, alias, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Alias, entry.Name, entry.Description,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrGroupAlreadyExists.
				WithMessagef("group alias already in use: %s", entry.Alias)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetByAlias retrieves a group by its alias
func (r *GroupRepository) GetByAlias(alias string) (*GroupEntry, error) {
	row := r.db.DB().QueryRow(`
		SELECT id, alias, name, description, created_at, updated_at
		FROM groups WHERE alias = ?`, alias,
	)
	return r.scanEntry(row, alias)
}

// List returns all groups ordered by alias
func (r *GroupRepository) List() ([]GroupEntry, error) {
	rows, err := r.db.DB().Query(`
		SELECT id, alias, name, description, created_at, updated_at
		FROM groups ORDER BY alias ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var entries []GroupEntry
	for rows.Next() {
		var (
			e    GroupEntry
			desc sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Alias, &e.Name, &desc, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		e.Description = desc.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Update modifies a group's name and description. The alias is immutable
// because album grants reference it.
func (r *GroupRepository) Update(entry *GroupEntry) error {
	entry.UpdatedAt = time.Now()

	result, err := r.db.DB().Exec(`
		UPDATE groups SET name = ?, description = ?, updated_at = ?
		WHERE alias = ?`,
		entry.Name, entry.Description, entry.UpdatedAt, entry.Alias,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrGroupNotFound.WithMessagef("group not found: %s", entry.Alias)
	}
	return nil
}

// Delete removes a group by alias
func (r *GroupRepository) Delete(alias string) error {
	result, err := r.db.DB().Exec(`DELETE FROM groups WHERE alias = ?`, alias)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrGroupNotFound.WithMessagef("group not found: %s", alias)
	}
	return nil
}

func (r *GroupRepository) scanEntry(row *sql.Row, alias string) (*GroupEntry, error) {
	var (
		e    GroupEntry
		desc sql.NullString
	)
	err := row.Scan(&e.ID, &e.Alias, &e.Name, &desc, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrGroupNotFound.WithMessagef("group not found: %s", alias)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	e.Description = desc.String
	return &e, nil
}
