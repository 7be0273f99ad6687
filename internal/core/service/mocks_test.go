package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

// Mock CacheRepository
type mockCacheRepo struct {
	stock          map[string]int
	idempotencySet map[string]bool
	failWith       error
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		stock:          make(map[string]int),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, false, m.failWith
	}
	qty, ok := m.stock[itemID]
	return qty, ok, nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.stock[itemID] = quantity
	return nil
}

func (m *mockCacheRepo) DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}

	current, ok := m.stock[itemID]
	if !ok || current < quantity {
		return false, nil
	}
	m.stock[itemID] = current - quantity
	return true, nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) stockOf(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[itemID]
}

// Mock TransactionArchive
type mockArchive struct {
	saved []domain.Transaction
	fail  bool
	mu    sync.Mutex
}

func (m *mockArchive) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("archive unavailable")
	}
	m.saved = append(m.saved, tx)
	return nil
}

func (m *mockArchive) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, 0, len(m.saved))
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.saved[i])
	}
	return out, nil
}

func (m *mockArchive) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
