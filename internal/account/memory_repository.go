package account

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository builds an in-memory account store for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Find(_ context.Context, accountNumber string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountNumber]
	if !ok {
		return Account{}, notFound("account.Find", accountNumber)
	}
	return a, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}

func (r *memoryRepository) Create(_ context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[a.AccountNumber]; exists {
		return duplicate("account.Create")
	}
	a.LoginAttempts = 0
	a.LastFailedAttempt = nil
	a.LastLogin = nil
	r.accounts[a.AccountNumber] = a
	return nil
}

func (r *memoryRepository) RecordAttempt(ctx context.Context, accountNumber string, at time.Time, attempt AttemptFunc) (Account, error) {
	return r.Update(ctx, accountNumber, recordWith(attempt, at))
}

func (r *memoryRepository) Update(_ context.Context, accountNumber string, fn func(*Account) error) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountNumber]
	if !ok {
		return Account{}, notFound("account.Update", accountNumber)
	}
	if err := fn(&a); err != nil {
		return Account{}, err
	}
	a.AccountNumber = accountNumber
	r.accounts[accountNumber] = a
	return a, nil
}

func (r *memoryRepository) Delete(_ context.Context, accountNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[accountNumber]; !ok {
		return notFound("account.Delete", accountNumber)
	}
	delete(r.accounts, accountNumber)
	return nil
}

func (r *memoryRepository) Ping(context.Context) error { return nil }
