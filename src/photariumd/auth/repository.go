package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/db"
)

// Repository handles user and token persistence
type Repository struct {
	db *db.Database
}

// NewRepository creates a new auth repository
func NewRepository(database *db.Database) *Repository {
	return &Repository{db: database}
}

const userColumns = `id, name, email, password_hash, role, group_aliases, allowed_providers, created_at, updated_at`

// CreateUser inserts a new user
func (r *Repository) CreateUser(user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.DB().Exec(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role),
		encodeList(user.GroupAliases), encodeList(user.AllowedProviders),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrUserAlreadyExists.
				WithMessagef("user name or email already in use: %s", user.Name)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id
func (r *Repository) GetUserByID(id string) (*User, error) {
	return r.getUser(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByName retrieves a user by name
func (r *Repository) GetUserByName(name string) (*User, error) {
	return r.getUser(`SELECT `+userColumns+` FROM users WHERE name = ?`, name)
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(email string) (*User, error) {
	return r.getUser(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// ListUsers returns all users ordered by name
func (r *Repository) ListUsers() ([]*User, error) {
	rows, err := r.db.DB().Query(`SELECT ` + userColumns + ` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser modifies an existing user
func (r *Repository) UpdateUser(user *User) error {
	user.UpdatedAt = time.Now()

	result, err := r.db.DB().Exec(`
		UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?,
			group_aliases = ?, allowed_providers = ?, updated_at = ?
		WHERE id = ?`,
		user.Name, user.Email, user.PasswordHash, string(user.Role),
		encodeList(user.GroupAliases), encodeList(user.AllowedProviders),
		user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrUserAlreadyExists.
				WithMessagef("user name or email already in use: %s", user.Name)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrUserNotFound.WithMessagef("user not found: %s", user.ID)
	}
	return nil
}

// DeleteUser removes a user by id
func (r *Repository) DeleteUser(id string) error {
	result, err := r.db.DB().Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrUserNotFound.WithMessagef("user not found: %s", id)
	}
	return nil
}

// RevokeToken marks a token id as revoked until it expires
func (r *Repository) RevokeToken(tokenID, userID string, expiresAt time.Time) error {
	_, err := r.db.DB().Exec(`
		INSERT OR IGNORE INTO revoked_tokens (token_id, user_id, expires_at)
		VALUES (?, ?, ?)`,
		tokenID, userID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks whether a token id has been revoked
func (r *Repository) IsTokenRevoked(tokenID string) (bool, error) {
	var count int
	err := r.db.DB().QueryRow(
		`SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?`, tokenID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return count > 0, nil
}

// CleanupExpiredTokens removes revocation rows for tokens past expiry
func (r *Repository) CleanupExpiredTokens() error {
	_, err := r.db.DB().Exec(
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to clean up expired tokens: %w", err)
	}
	return nil
}

func (r *Repository) getUser(query string, arg interface{}) (*User, error) {
	row := r.db.DB().QueryRow(query, arg)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrUserNotFound
	}
	return user, err
}

func scanUser(scan func(...interface{}) error) (*User, error) {
	var (
		user      User
		role      string
		groups    string
		providers string
	)
	err := scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role,
		&groups, &providers, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Role = roleFromString(role)
	user.GroupAliases = decodeList(groups)
	user.AllowedProviders = decodeList(providers)
	return &user, nil
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
