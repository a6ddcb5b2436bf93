package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem. The
// connection behind it is a capability handed in at process start; the auth
// core never owns its lifecycle.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	ResetTokens(ctx context.Context) ResetTokenStore
}

// UserStore manages identity records. The ByEmail/ByID lookups only return
// active users: deactivated accounts are invisible to authentication.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindActiveByEmail(ctx context.Context, email string) (*User, error)
	FindActiveByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// RoleStore manages the user-role relation. Grant of an already-held role is
// a no-op, not an error.
type RoleStore interface {
	Grant(ctx context.Context, userID string, role Role) error
	Revoke(ctx context.Context, userID string, role Role) error
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
	HasRole(ctx context.Context, userID string, role Role) (bool, error)
}

// ResetTokenStore keeps at most one live reset token per user. Upsert
// replaces any prior token atomically.
type ResetTokenStore interface {
	Upsert(ctx context.Context, tok *ResetToken) error
	FindValid(ctx context.Context, token string, now time.Time) (*ResetToken, error)
	DeleteForUser(ctx context.Context, userID string) error
}
