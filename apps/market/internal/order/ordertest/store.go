// Package ordertest provides in-memory doubles for the order engine's
// collaborators.
package ordertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"nftmarket/apps/market/internal/model"
	"nftmarket/apps/market/internal/order"
)

// MemoryStore is an order.Store backed by a map.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]model.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[int64]model.Order)}
}

func (m *MemoryStore) SaveOrder(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.orders[o.ID]; ok && o.ID != 0 {
		// verified and signature are owned by MarkVerified
		o.Verified = existing.Verified
		o.Signature = existing.Signature
		o.CreatedAt = existing.CreatedAt
		m.orders[o.ID] = *o
		return nil
	}

	m.nextID++
	o.ID = m.nextID
	o.Verified = false
	o.Signature = nil
	o.CreatedAt = time.Now()
	m.orders[o.ID] = *o
	return nil
}

func (m *MemoryStore) FindOrder(_ context.Context, filter order.OrderFilter) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[filter.ID]
	if !ok {
		return nil, nil
	}
	if filter.Verified != nil && o.Verified != *filter.Verified {
		return nil, nil
	}
	return &o, nil
}

func (m *MemoryStore) ListOrders(_ context.Context, q order.OrderBookQuery) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Order
	for _, o := range m.orders {
		if !o.Verified || o.IsSell != q.IsSell {
			continue
		}
		if o.ContractAddress != q.ContractAddress || o.TokenID != q.TokenID {
			continue
		}
		if o.ExpirationTime < q.Now {
			continue
		}
		if q.Maker != "" && o.Maker != q.Maker {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].ID < out[j].ID
		}
		if q.IsSell {
			return out[i].Price < out[j].Price
		}
		return out[i].Price > out[j].Price
	})
	return out, nil
}

func (m *MemoryStore) MarkVerified(_ context.Context, id int64, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.Verified {
		return false, nil
	}
	o.Verified = true
	o.Signature = &signature
	m.orders[id] = o
	return true, nil
}

// Get returns a copy of the stored order regardless of state.
func (m *MemoryStore) Get(id int64) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

// Len is the number of stored orders.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
