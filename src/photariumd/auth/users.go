package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/photariumd/access"
)

// UserManager handles account creation and credential checks
type UserManager struct {
	repo *Repository
}

// NewUserManager creates a new user manager
func NewUserManager(repo *Repository) *UserManager {
	return &UserManager{repo: repo}
}

// CreateUser registers a new account with a bcrypt-hashed password
func (m *UserManager) CreateUser(name, email, password, role string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" {
		return nil, apperrors.ErrInvalidUserData.WithMessage("name and email are required")
	}
	if len(password) < 8 {
		return nil, apperrors.ErrInvalidUserData.WithMessage("password must be at least 8 characters")
	}
	if role != "" && !access.ValidRole(role) {
		return nil, apperrors.ErrInvalidUserData.WithMessagef("unknown role: %s", role)
	}
	if role == "" {
		role = string(access.RoleGuest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         access.Role(role),
	}
	if err := m.repo.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies a name/password pair and returns the user. The
// same error comes back for unknown users and wrong passwords.
func (m *UserManager) Authenticate(name, password string) (*User, error) {
	user, err := m.repo.GetUserByName(name)
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces a user's password after verifying the current one
func (m *UserManager) ChangePassword(userID, current, next string) error {
	user, err := m.repo.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperrors.ErrInvalidCredentials
	}
	if len(next) < 8 {
		return apperrors.ErrInvalidUserData.WithMessage("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return m.repo.UpdateUser(user)
}

// SetGroups replaces a user's group memberships
func (m *UserManager) SetGroups(userID string, aliases []string) error {
	user, err := m.repo.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.GroupAliases = aliases
	return m.repo.UpdateUser(user)
}

// SetAllowedProviders replaces a user's upload provider allow list
func (m *UserManager) SetAllowedProviders(userID string, providers []string) error {
	user, err := m.repo.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.AllowedProviders = providers
	return m.repo.UpdateUser(user)
}
