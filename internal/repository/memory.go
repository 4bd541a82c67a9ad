package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cartloop/coupon-engine/internal/models"
)

// MemoryCatalog is the default catalog backend: a mutex-guarded map from
// code to coupon.
type MemoryCatalog struct {
	mu    sync.RWMutex
	store map[string]models.Coupon
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{store: make(map[string]models.Coupon)}
}

func (m *MemoryCatalog) Upsert(_ context.Context, c models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := m.store[c.Code]; ok {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.store[c.Code] = c
	return nil
}

func (m *MemoryCatalog) Get(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryCatalog) All(_ context.Context) ([]models.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Coupon, 0, len(m.store))
	for _, c := range m.store {
		out = append(out, c)
	}
	return out, nil
}

// usageKey is the composite key for one user's redemptions of one coupon.
// A flat map keyed by the pair keeps the check-then-increment unit obvious,
// rather than nesting maps per user.
type usageKey struct {
	UserID string
	Code   string
}

type MemoryUsage struct {
	mu     sync.Mutex
	counts map[usageKey]int
}

func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{counts: make(map[usageKey]int)}
}

func (m *MemoryUsage) Count(_ context.Context, userID, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[usageKey{userID, code}], nil
}

func (m *MemoryUsage) Increment(_ context.Context, userID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[usageKey{userID, code}]++
	return nil
}

func (m *MemoryUsage) CountsFor(_ context.Context, userID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for k, n := range m.counts {
		if k.UserID == userID {
			out[k.Code] = n
		}
	}
	return out, nil
}
