package auth

import (
	"strings"
	"time"
)

// Role is a named capability bucket. Access checks are flat set membership;
// there is no implicit hierarchy between roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// DefaultRole is assigned to every account at signup.
const DefaultRole = RoleViewer

// ParseRole normalizes raw input into a known Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleOperator:
		return RoleOperator, true
	case RoleViewer:
		return RoleViewer, true
	}
	return "", false
}

// User is a credential-store identity record. PasswordHash never leaves the
// auth package through API responses.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated caller attached to a request after the
// access middleware has verified a token and loaded roles.
type Identity struct {
	UserID string
	Email  string
	Roles  []Role
}

// HasRole reports flat-set membership.
func (id Identity) HasRole(role Role) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity's role set intersects allowed.
func (id Identity) HasAnyRole(allowed ...Role) bool {
	for _, r := range allowed {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

// ResetToken is the single live password-reset token for a user.
type ResetToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// TokenPair bundles a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
