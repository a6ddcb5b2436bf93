package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"irisfleet.io/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore implements Store in process memory. It backs handler tests and
// local development without Postgres.
type MemStore struct {
	mu     sync.RWMutex
	users  map[string]*User        // id -> user
	roles  map[string]map[Role]struct{}
	resets map[string]*ResetToken // userID -> token
}

// NewMemStore creates an empty in-memory credential store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[string]*User),
		roles:  make(map[string]map[Role]struct{}),
		resets: make(map[string]*ResetToken),
	}
}

func (m *MemStore) Users(context.Context) UserStore             { return (*memUsers)(m) }
func (m *MemStore) Roles(context.Context) RoleStore             { return (*memRoles)(m) }
func (m *MemStore) ResetTokens(context.Context) ResetTokenStore { return (*memResets)(m) }

// Deactivate soft-deletes a user, mirroring what the admin tooling does in
// the real store. Test-only convenience.
func (m *MemStore) Deactivate(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Active = false
	}
}

type memUsers MemStore

func (m *memUsers) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range m.users {
		if existing.Active && existing.Email == email {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.Email = email
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Active && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindActiveByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type memRoles MemStore

func (m *memRoles) Grant(ctx context.Context, userID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.roles[userID]
	if !ok {
		set = make(map[Role]struct{})
		m.roles[userID] = set
	}
	set[role] = struct{}{}
	return nil
}

func (m *memRoles) Revoke(ctx context.Context, userID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles[userID], role)
	return nil
}

func (m *memRoles) RolesForUser(ctx context.Context, userID string) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.roles[userID]
	roles := make([]Role, 0, len(set))
	for _, known := range []Role{RoleAdmin, RoleManager, RoleOperator, RoleViewer} {
		if _, ok := set[known]; ok {
			roles = append(roles, known)
		}
	}
	return roles, nil
}

func (m *memRoles) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.roles[userID][role]
	return ok, nil
}

type memResets MemStore

func (m *memResets) Upsert(ctx context.Context, tok *ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.resets[tok.UserID] = &cp
	return nil
}

func (m *memResets) FindValid(ctx context.Context, token string, now time.Time) (*ResetToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tok := range m.resets {
		if tok.Token == token && tok.ExpiresAt.After(now) {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memResets) DeleteForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resets, userID)
	return nil
}
