package account

import (
	"errors"
	"time"
)

const (
	// NoSession is the session token reported for an account without an active session.
	NoSession = "0"

	defaultName          = "Anonymous"
	defaultSuperuserName = "Admin"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrPhoneTaken is returned when another account already uses the phone number.
	ErrPhoneTaken = errors.New("phone already registered")
	// ErrPINNotSet is returned when verifying a PIN on an account without one.
	ErrPINNotSet = errors.New("pin not set")
	// ErrInvalidPIN is returned when a PIN does not match the stored hash.
	ErrInvalidPIN = errors.New("invalid pin")
)

// Account is a registered user, identified by phone number.
type Account struct {
	ID           int64
	Phone        string
	Name         string
	PasswordHash []byte
	PINHash      []byte
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	TokenVersion int
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPIN reports whether a step-up PIN has been set.
func (a Account) HasPIN() bool {
	return len(a.PINHash) > 0
}

// NewAccount is the input for self-registration and superuser bootstrap.
type NewAccount struct {
	Phone    string
	Name     string
	Password string
	PIN      string
}

// Patch carries a partial account update; nil fields are left untouched.
type Patch struct {
	Phone       *string
	Name        *string
	Password    *string
	PIN         *string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
}

// View is the public representation of an account. Password and PIN hashes are
// never part of it.
type View struct {
	ID           int64      `json:"id"`
	Phone        string     `json:"phone"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"is_active"`
	IsStaff      bool       `json:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser"`
	SessionToken string     `json:"session_token,omitempty"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToView converts an account to its public representation.
func ToView(a Account) View {
	return View{
		ID:          a.ID,
		Phone:       a.Phone,
		Name:        a.Name,
		IsActive:    a.IsActive,
		IsStaff:     a.IsStaff,
		IsSuperuser: a.IsSuperuser,
		LastLogin:   a.LastLogin,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
