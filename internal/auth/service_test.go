package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	codec, err := NewCodec("test-secret", WithIssuer("iris-fleet"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := NewService(store, codec, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestSignupAssignsViewerAndIssuesTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{
		Email: "Alice@Example.com", Password: "Passw0rd!",
		FirstName: "Alice", LastName: "Smith",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.User.Email != "alice@example.com" {
		t.Fatalf("expected lower-cased email, got %s", res.User.Email)
	}
	if len(res.Roles) != 1 || res.Roles[0] != RoleViewer {
		t.Fatalf("expected default viewer role, got %v", res.Roles)
	}
	if res.User.PasswordHash == "Passw0rd!" {
		t.Fatalf("password stored in plaintext")
	}

	// Both tokens must verify through the codec and carry the right kind.
	access, err := svc.codec.Verify(res.Tokens.AccessToken)
	if err != nil || access.TokenType != TokenKindAccess {
		t.Fatalf("access token invalid: %v (%v)", err, access)
	}
	refresh, err := svc.codec.Verify(res.Tokens.RefreshToken)
	if err != nil || refresh.TokenType != TokenKindRefresh {
		t.Fatalf("refresh token invalid: %v (%v)", err, refresh)
	}
}

func TestSignupConflictIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "alice@example.com", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.Signup(ctx, SignupInput{Email: "ALICE@example.com", Password: "other-pass"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupReusesDeactivatedEmail(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("first signup: %v", err)
	}
	store.Deactivate(first.User.ID)

	// Only active users block an email: a soft-deleted address registers
	// again. Explicit policy, not an accident.
	second, err := svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "NewPassw0rd!"})
	if err != nil {
		t.Fatalf("re-signup after deactivation: %v", err)
	}
	if second.User.ID == first.User.ID {
		t.Fatalf("expected a fresh account")
	}
}

func TestLoginEnumerationResistance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "alice@example.com", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, errWrong := svc.Login(ctx, "alice@example.com", "wrong")
	_, errAbsent := svc.Login(ctx, "nobody@example.com", "whatever")

	if !errors.Is(errWrong, ErrInvalidCredentials) || !errors.Is(errAbsent, ErrInvalidCredentials) {
		t.Fatalf("expected identical credential errors, got %v / %v", errWrong, errAbsent)
	}
}

func TestLoginReturnsRoles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.GrantRole(ctx, res.User.ID, RoleAdmin); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	// Duplicate grant is a no-op.
	if err := svc.GrantRole(ctx, res.User.ID, RoleAdmin); err != nil {
		t.Fatalf("duplicate GrantRole: %v", err)
	}

	login, err := svc.Login(ctx, "carol@example.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(login.Roles) != 2 {
		t.Fatalf("expected viewer+admin, got %v", login.Roles)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "dave@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// An access token replayed against the refresh flow must be rejected
	// even though the signature is fine.
	if _, err := svc.Refresh(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh, got %v", err)
	}
}

func TestRefreshTokenReusable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "erin@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	first, err := svc.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	second, err := svc.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("second refresh with same token: %v", err)
	}

	// No revocation store: both issued pairs stay independently valid.
	for _, tok := range []string{first.Tokens.AccessToken, second.Tokens.AccessToken, first.Tokens.RefreshToken, second.Tokens.RefreshToken} {
		if _, err := svc.codec.Verify(tok); err != nil {
			t.Fatalf("expected token to verify: %v", err)
		}
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "frank@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	store.Deactivate(res.User.ID)

	if _, err := svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh for deactivated user, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "grace@example.com", Password: "OldPass123"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// Unknown email: silent success, nothing stored.
	if err := svc.ForgotPassword(ctx, "nonexistent@example.com"); err != nil {
		t.Fatalf("forgot for unknown email should succeed generically: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "grace@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	tok1 := store.resets[res.User.ID]
	if tok1 == nil || tok1.Token == "" {
		t.Fatalf("expected stored reset token")
	}

	// Second request overwrites the first; only one live token per user.
	if err := svc.ForgotPassword(ctx, "grace@example.com"); err != nil {
		t.Fatalf("second ForgotPassword: %v", err)
	}
	tok2 := store.resets[res.User.ID]
	if tok2.Token == tok1.Token {
		t.Fatalf("expected a fresh token on re-request")
	}
	if _, err := store.ResetTokens(ctx).FindValid(ctx, tok1.Token, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("superseded token should be gone, got %v", err)
	}

	if err := svc.ResetPassword(ctx, tok2.Token, "NewPass456"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Login(ctx, "grace@example.com", "NewPass456"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := svc.Login(ctx, "grace@example.com", "OldPass123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}

	// Consumed token is single-use.
	if err := svc.ResetPassword(ctx, tok2.Token, "Another789"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken on reuse, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	now := time.Now()
	svc, store := newTestService(t, WithClock(func() time.Time { return now }), WithResetTTL(time.Hour))
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "heidi@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.ForgotPassword(ctx, "heidi@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	token := store.resets[res.User.ID].Token

	now = now.Add(2 * time.Hour)
	if err := svc.ResetPassword(ctx, token, "NewPass456"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken after expiry, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "ivan@example.com", Password: "OldPass123"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.ChangePassword(ctx, res.User.ID, "wrong", "NewPass456"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, res.User.ID, "OldPass123", "NewPass456"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, "ivan@example.com", "NewPass456"); err != nil {
		t.Fatalf("login with changed password: %v", err)
	}
}

func TestIdentityFromTokenLoadsRolesFresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, SignupInput{Email: "judy@example.com", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	ident, err := svc.IdentityFromToken(ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("IdentityFromToken: %v", err)
	}
	if ident.UserID != res.User.ID || ident.Email != "judy@example.com" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if !ident.HasRole(RoleViewer) || ident.HasRole(RoleAdmin) {
		t.Fatalf("unexpected roles: %v", ident.Roles)
	}

	// Role changes surface on the next verification without re-login.
	if err := svc.GrantRole(ctx, res.User.ID, RoleManager); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	ident, err = svc.IdentityFromToken(ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("IdentityFromToken after grant: %v", err)
	}
	if !ident.HasRole(RoleManager) {
		t.Fatalf("expected manager role after grant, got %v", ident.Roles)
	}

	// Refresh tokens never pass as access tokens.
	_, err = svc.IdentityFromToken(ctx, res.Tokens.RefreshToken)
	var terr *TokenError
	if !errors.As(err, &terr) || terr.Kind != TokenMalformed {
		t.Fatalf("expected TokenMalformed for refresh-as-access, got %v", err)
	}
}
