package httpapi

import (
	"errors"
	"net/http"

	"irisfleet.io/internal/audit"
	"irisfleet.io/internal/auth"
)

type signupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type userPayload struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles,omitempty"`
}

func userToPayload(u *auth.User, roles []auth.Role) userPayload {
	p := userPayload{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	for _, r := range roles {
		p.Roles = append(p.Roles, string(r))
	}
	return p
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	res, err := a.authSvc.Signup(r.Context(), auth.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		a.handleAuthError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{"email": res.User.Email})
	writeSuccess(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user":         userToPayload(res.User, nil),
		"token":        res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	res, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"email": res.User.Email})
	writeSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"user":         userToPayload(res.User, res.Roles),
		"token":        res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := a.authSvc.Logout(r.Context()); err != nil {
		a.handleAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := a.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		a.handleAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_reset_requested", map[string]any{"email": req.Email})
	// Generic response regardless of whether the account exists.
	writeSuccess(w, http.StatusOK,
		"If an account with that email exists, a password reset link has been sent", nil)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := a.authSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		a.handleAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_reset", nil)
	writeSuccess(w, http.StatusOK, "Password reset successful", nil)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	res, err := a.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.handleAuthError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Token refreshed successfully", map[string]any{
		"token":        res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, roles, err := a.authSvc.CurrentUser(r.Context(), ident.UserID)
	if err != nil {
		a.handleAuthError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Success", userToPayload(user, roles))
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := a.authSvc.ChangePassword(r.Context(), ident.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		a.handleAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_changed", nil)
	writeSuccess(w, http.StatusOK, "Password changed successfully", nil)
}

// handleAuthError maps the auth service error taxonomy onto HTTP statuses
// and the client-facing message set.
func (a *API) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrInvalidRefresh):
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, auth.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, auth.ErrWrongPassword):
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
