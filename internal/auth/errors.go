package auth

import "errors"

var (
	ErrPhoneNotNumeric  = errors.New("phone must be numeric")
	ErrPasswordTooShort = errors.New("password must be at least 3 characters long")
	ErrUserNotFound     = errors.New("user does not exist")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrAlreadyLoggedIn  = errors.New("user already logged in")

	ErrSessionMissing   = errors.New("session token missing")
	ErrInvalidSession   = errors.New("invalid session token")
	ErrForbidden        = errors.New("session does not belong to account")
	ErrInvalidPINFormat = errors.New("pin must be a 4 or 6 digit number")

	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)
