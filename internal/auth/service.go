package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"irisfleet.io/internal/obs"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultResetTTL   = time.Hour
)

// Service orchestrates the authentication flows. Every operation is a
// short-lived transaction against the injected store; the service itself
// holds no mutable per-request state.
type Service struct {
	store Store
	codec *Codec
	now   func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithResetTTL configures the password-reset token window.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. The codec is the only component allowed
// to mint tokens; handing it in here keeps that true.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		store:      store,
		codec:      codec,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		resetTTL:   defaultResetTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignupInput carries the fields required to register an account.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is returned by the flows that establish a session.
type AuthResult struct {
	User   *User
	Roles  []Role
	Tokens TokenPair
}

// Signup registers a new account and issues its first token pair. Only an
// active account blocks the email: a previously deactivated address may
// register again.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	users := s.store.Users(ctx)
	if _, err := users.FindActiveByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if err := s.store.Roles(ctx).Grant(ctx, user.ID, DefaultRole); err != nil {
		return nil, err
	}

	tokens, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Roles: []Role{DefaultRole}, Tokens: tokens}, nil
}

// Login authenticates credentials and issues a token pair. Unknown email and
// wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.Users(ctx).FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	roles, err := s.store.Roles(ctx).RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	tokens, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Roles: roles, Tokens: tokens}, nil
}

// Logout succeeds unconditionally. No revocation store exists, so issued
// tokens stay valid until their own expiry.
func (s *Service) Logout(ctx context.Context) error {
	return nil
}

// ForgotPassword mints and stores a reset token when the email matches an
// active account. It reports success either way; the caller must relay the
// same generic message regardless.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.store.Users(ctx).FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := randomToken(32)
	if err != nil {
		return err
	}
	tok := &ResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.resetTTL),
	}
	if err := s.store.ResetTokens(ctx).Upsert(ctx, tok); err != nil {
		return err
	}
	obs.Logger().Info().Str("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword consumes a reset token and installs a new password. The
// token is single-use: it is deleted before the call returns.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" || newPassword == "" {
		return fmt.Errorf("%w: token and password are required", ErrInvalidInput)
	}

	resets := s.store.ResetTokens(ctx)
	rec, err := resets.FindValid(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Users(ctx).UpdatePassword(ctx, rec.UserID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return resets.DeleteForUser(ctx, rec.UserID)
}

// Refresh exchanges a valid refresh token for a new pair. The superseded
// refresh token stays valid until its own expiry; rotation is by convention.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if claims.TokenType != TokenKindRefresh {
		return nil, ErrInvalidRefresh
	}

	user, err := s.store.Users(ctx).FindActiveByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	roles, err := s.store.Roles(ctx).RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	tokens, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Roles: roles, Tokens: tokens}, nil
}

// ChangePassword verifies the caller's current password before installing a
// new one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	user, err := s.store.Users(ctx).FindActiveByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		return ErrWrongPassword
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.Users(ctx).UpdatePassword(ctx, user.ID, hash)
}

// CurrentUser loads the caller's record and roles fresh from the store.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*User, []Role, error) {
	user, err := s.store.Users(ctx).FindActiveByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.store.Roles(ctx).RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

// IdentityFromToken verifies an access token and resolves the caller's
// current roles. Role membership is read fresh on every call, so a
// revocation takes effect on the next request. A refresh token presented
// here fails as malformed.
func (s *Service) IdentityFromToken(ctx context.Context, token string) (Identity, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	if claims.TokenType != TokenKindAccess {
		return Identity{}, &TokenError{Kind: TokenMalformed, cause: errors.New("not an access token")}
	}
	roles, err := s.store.Roles(ctx).RolesForUser(ctx, claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, Roles: roles}, nil
}

// GrantRole assigns a role; granting an already-held role is a no-op.
func (s *Service) GrantRole(ctx context.Context, userID string, role Role) error {
	if _, err := s.store.Users(ctx).FindActiveByID(ctx, userID); err != nil {
		return err
	}
	return s.store.Roles(ctx).Grant(ctx, userID, role)
}

// RevokeRole removes a role assignment.
func (s *Service) RevokeRole(ctx context.Context, userID string, role Role) error {
	return s.store.Roles(ctx).Revoke(ctx, userID, role)
}

// HasRole reports current role membership straight from the store.
func (s *Service) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	return s.store.Roles(ctx).HasRole(ctx, userID, role)
}

func (s *Service) mintPair(user *User) (TokenPair, error) {
	access, accessExp, err := s.codec.Sign(user.ID, user.Email, TokenKindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.Sign(user.ID, "", TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
