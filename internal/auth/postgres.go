package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"irisfleet.io/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore             { return &userStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore             { return &roleStore{db: s.db} }
func (s *PGStore) ResetTokens(context.Context) ResetTokenStore { return &resetTokenStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`insert into users(id, email, password, first_name, last_name, is_active, created_at, updated_at)
		 values($1,$2,$3,$4,$5,true,$6,$6)
		 returning created_at, updated_at`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.FirstName, u.LastName, now,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	u.Active = true
	return nil
}

func (s *userStore) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password, first_name, last_name, is_active, created_at, updated_at
		 from users where email=$1 and is_active=true`,
		strings.ToLower(email),
	)
	return scanUser(row)
}

func (s *userStore) FindActiveByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password, first_name, last_name, is_active, created_at, updated_at
		 from users where id=$1 and is_active=true`,
		id,
	)
	return scanUser(row)
}

func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password=$1, updated_at=$2 where id=$3`,
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Role store ---------------------------------------------------------------
type roleStore struct{ db *sql.DB }

func (s *roleStore) Grant(ctx context.Context, userID string, role Role) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(id, user_id, role) values($1,$2,$3)
		 on conflict (user_id, role) do nothing`,
		ids.New(), userID, string(role),
	)
	return err
}

func (s *roleStore) Revoke(ctx context.Context, userID string, role Role) error {
	_, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role=$2`,
		userID, string(role),
	)
	return err
}

func (s *roleStore) RolesForUser(ctx context.Context, userID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select role from user_roles where user_id=$1 order by role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, Role(role))
	}
	return roles, rows.Err()
}

func (s *roleStore) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`select exists (select 1 from user_roles where user_id=$1 and role=$2)`,
		userID, string(role),
	)
	var has bool
	if err := row.Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}

// Reset token store --------------------------------------------------------
type resetTokenStore struct{ db *sql.DB }

func (s *resetTokenStore) Upsert(ctx context.Context, tok *ResetToken) error {
	// Single conditional upsert keeps the one-live-token-per-user invariant
	// without a read-then-write window.
	_, err := s.db.ExecContext(ctx,
		`insert into password_reset_tokens(id, user_id, token, expires_at, created_at)
		 values($1,$2,$3,$4,$5)
		 on conflict (user_id) do update
		 set token=excluded.token, expires_at=excluded.expires_at, created_at=excluded.created_at`,
		ids.New(), tok.UserID, tok.Token, tok.ExpiresAt, time.Now().UTC(),
	)
	return err
}

func (s *resetTokenStore) FindValid(ctx context.Context, token string, now time.Time) (*ResetToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_id, token, expires_at from password_reset_tokens
		 where token=$1 and expires_at > $2`,
		token, now,
	)
	var tok ResetToken
	if err := row.Scan(&tok.UserID, &tok.Token, &tok.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

func (s *resetTokenStore) DeleteForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from password_reset_tokens where user_id=$1`, userID)
	return err
}

// isUniqueViolation matches Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
