package recipient

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Account)}
}

func (r *memoryRepository) Get(_ context.Context, userID string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.storage[userID]
	if !ok {
		return Account{}, ErrNotConfigured
	}
	return account, nil
}

func (r *memoryRepository) Upsert(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[account.UserID] = account
	return nil
}
