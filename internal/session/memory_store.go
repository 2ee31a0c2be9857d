package session

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	byToken   map[string]Session
	byAccount map[int64]string
}

// NewMemoryStore builds an in-memory session store. now may be nil.
func NewMemoryStore(now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		now:       now,
		byToken:   make(map[string]Session),
		byAccount: make(map[int64]string),
	}
}

func (m *memoryStore) Open(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.liveByAccount(s.AccountID); err == nil {
		return ErrActiveSession
	}
	if existing, ok := m.byToken[s.Token]; ok && !existing.Expired(m.now()) {
		return ErrTokenCollision
	}
	m.byToken[s.Token] = s
	m.byAccount[s.AccountID] = s.Token
	return nil
}

func (m *memoryStore) ByToken(_ context.Context, token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.Expired(m.now()) {
		m.drop(s)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) ByAccount(_ context.Context, accountID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveByAccount(accountID)
}

func (m *memoryStore) Revoke(_ context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.byAccount[accountID]; ok {
		delete(m.byToken, token)
		delete(m.byAccount, accountID)
	}
	return nil
}

// liveByAccount must be called with the lock held.
func (m *memoryStore) liveByAccount(accountID int64) (Session, error) {
	token, ok := m.byAccount[accountID]
	if !ok {
		return Session{}, ErrNotFound
	}
	s, ok := m.byToken[token]
	if !ok || s.AccountID != accountID {
		delete(m.byAccount, accountID)
		return Session{}, ErrNotFound
	}
	if s.Expired(m.now()) {
		m.drop(s)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) drop(s Session) {
	delete(m.byToken, s.Token)
	if m.byAccount[s.AccountID] == s.Token {
		delete(m.byAccount, s.AccountID)
	}
}
