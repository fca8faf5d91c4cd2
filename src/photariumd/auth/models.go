// Package auth provides account management and JWT authentication for
// photariumd.
package auth

import (
	"time"

	"github.com/photarium/photarium/src/photariumd/access"
)

// User represents an account
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         access.Role `json:"role"`

	// GroupAliases are the sharing groups the user belongs to
	GroupAliases []string `json:"groupAliases,omitempty"`

	// AllowedProviders limits which storage providers the user may upload
	// to. Empty means unrestricted (for owners and admins).
	AllowedProviders []string `json:"allowedProviders,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Principal converts the user into the identity the access package
// evaluates.
func (u *User) Principal() *access.Principal {
	if u == nil {
		return nil
	}
	return &access.Principal{
		ID:               u.ID,
		Role:             u.Role,
		GroupAliases:     u.GroupAliases,
		AllowedProviders: u.AllowedProviders,
	}
}

// roleFromString parses a stored role, defaulting unknown values to guest
// so a corrupted row can never grant elevated access.
func roleFromString(s string) access.Role {
	if access.ValidRole(s) {
		return access.Role(s)
	}
	return access.RoleGuest
}

// TokenClaims holds the validated claims extracted from a JWT
type TokenClaims struct {
	UserID           string      `json:"user_id"`
	UserName         string      `json:"user_name"`
	Email            string      `json:"email"`
	Role             access.Role `json:"role"`
	GroupAliases     []string    `json:"group_aliases,omitempty"`
	AllowedProviders []string    `json:"allowed_providers,omitempty"`
	TokenID          string      `json:"token_id"`
}

// Principal converts token claims into the identity the access package
// evaluates.
func (c *TokenClaims) Principal() *access.Principal {
	if c == nil {
		return nil
	}
	return &access.Principal{
		ID:               c.UserID,
		Role:             c.Role,
		GroupAliases:     c.GroupAliases,
		AllowedProviders: c.AllowedProviders,
	}
}
