// Package access evaluates who may see and modify gallery content. The
// rules are deliberately small: admins see everything, public content is
// visible to everyone, and private content is opened up per group alias or
// per user id.
package access

// Role is the coarse permission tier of an account.
type Role string

const (
	// RoleAdmin bypasses all visibility checks
	RoleAdmin Role = "admin"
	// RoleOwner manages galleries and uploads content
	RoleOwner Role = "owner"
	// RoleGuest views content it has been granted
	RoleGuest Role = "guest"
)

// Principal is the identity a request acts as. A nil principal means an
// unauthenticated visitor.
type Principal struct {
	ID           string   `json:"id"`
	Role         Role     `json:"role"`
	GroupAliases []string `json:"groupAliases,omitempty"`

	// AllowedProviders limits which storage providers the principal may
	// upload to. Empty means no restriction.
	AllowedProviders []string `json:"allowedProviders,omitempty"`
}

// Visibility is the access policy attached to an album or photo.
type Visibility struct {
	IsPublic      bool     `json:"isPublic"`
	AllowedGroups []string `json:"allowedGroups,omitempty"`
	AllowedUsers  []string `json:"allowedUsers,omitempty"`
}

// CanView reports whether a principal may see content with the given
// visibility. The checks run cheapest first and stop at the first grant.
func CanView(p *Principal, v Visibility) bool {
	if p != nil && p.Role == RoleAdmin {
		return true
	}
	if v.IsPublic {
		return true
	}
	if p == nil {
		return false
	}
	for _, grant := range v.AllowedUsers {
		if grant == p.ID {
			return true
		}
	}
	for _, grant := range v.AllowedGroups {
		for _, alias := range p.GroupAliases {
			if alias == grant {
				return true
			}
		}
	}
	return false
}

// CanUpload reports whether a principal may upload to a storage provider.
// Guests never upload; owners are restricted to their allowed provider
// list when one is set.
func CanUpload(p *Principal, provider string) bool {
	if p == nil {
		return false
	}
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleOwner:
		if len(p.AllowedProviders) == 0 {
			return true
		}
		for _, allowed := range p.AllowedProviders {
			if allowed == provider {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleOwner, RoleGuest:
		return true
	}
	return false
}
