package auth

import "errors"

var (
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")

	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidRefresh     = errors.New("auth: invalid refresh token")
	ErrInvalidResetToken  = errors.New("auth: invalid or expired reset token")
	ErrWrongPassword      = errors.New("auth: current password is incorrect")
)
