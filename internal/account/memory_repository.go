package account

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]Account
}

// NewMemoryRepository builds an in-memory account store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[int64]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acc Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phoneInUse(acc.Phone, 0) {
		return Account{}, ErrPhoneTaken
	}
	r.nextID++
	now := time.Now().UTC()
	acc.ID = r.nextID
	acc.CreatedAt = now
	acc.UpdatedAt = now
	r.byID[acc.ID] = acc
	return acc, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.byID {
		if acc.Phone == phone {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0, len(r.byID))
	for _, acc := range r.byID {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) Update(_ context.Context, acc Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[acc.ID]
	if !ok {
		return Account{}, ErrNotFound
	}
	if r.phoneInUse(acc.Phone, acc.ID) {
		return Account{}, ErrPhoneTaken
	}
	acc.CreatedAt = existing.CreatedAt
	acc.UpdatedAt = time.Now().UTC()
	r.byID[acc.ID] = acc
	return acc, nil
}

func (r *memoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// phoneInUse must be called with the lock held.
func (r *memoryRepository) phoneInUse(phone string, exceptID int64) bool {
	for id, acc := range r.byID {
		if id != exceptID && acc.Phone == phone {
			return true
		}
	}
	return false
}
