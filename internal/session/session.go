package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no live session matches the lookup.
	ErrNotFound = errors.New("session not found")
	// ErrActiveSession is returned by Open when the account already has a session.
	ErrActiveSession = errors.New("account already has an active session")
	// ErrTokenCollision is returned by Open when the token is bound to another session.
	ErrTokenCollision = errors.New("session token already in use")
)

// Session binds an opaque token to one account.
type Session struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session is past its expiry. A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions with at most one session per account.
type Store interface {
	// Open atomically creates s unless the account already has a session.
	Open(ctx context.Context, s Session) error
	ByToken(ctx context.Context, token string) (Session, error)
	ByAccount(ctx context.Context, accountID int64) (Session, error)
	// Revoke removes the account's session; revoking a missing session is not an error.
	Revoke(ctx context.Context, accountID int64) error
}

// New builds a session for accountID issued now, expiring after ttl (0 = never).
func New(token string, accountID int64, now time.Time, ttl time.Duration) Session {
	s := Session{Token: token, AccountID: accountID, IssuedAt: now.UTC()}
	if ttl > 0 {
		s.ExpiresAt = s.IssuedAt.Add(ttl)
	}
	return s
}
