package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/stock-service/internal/core/domain"
	"github.com/rl1809/stock-service/internal/port"
)

// MemoryAdapter keeps stock rows in process memory. Used for local runs and tests.
type MemoryAdapter struct {
	mu       sync.RWMutex
	stocks   map[int64]domain.StockRecord
	nextCode int64
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		stocks:   make(map[int64]domain.StockRecord),
		nextCode: 1,
	}
}

func (m *MemoryAdapter) GetByProductCode(ctx context.Context, productCode int64) (domain.StockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stocks[productCode]
	if !ok {
		return domain.StockRecord{}, fmt.Errorf("product %d: %w", productCode, port.ErrNotFound)
	}
	return s, nil
}

func (m *MemoryAdapter) Decrement(ctx context.Context, productCode int64, quantity int, at time.Time) (domain.StockRecord, error) {
	if quantity <= 0 {
		return domain.StockRecord{}, fmt.Errorf("decrement stock: non-positive quantity %d", quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stocks[productCode]
	if !ok {
		return domain.StockRecord{}, fmt.Errorf("product %d: %w", productCode, port.ErrNotFound)
	}
	if current.Quantity < quantity {
		return current, fmt.Errorf("product %d has %d, requested %d: %w", productCode, current.Quantity, quantity, port.ErrInsufficientStock)
	}

	current.Quantity -= quantity
	current.UpdatedAt = at
	current.Version++
	m.stocks[productCode] = current

	return current, nil
}

func (m *MemoryAdapter) Create(ctx context.Context, productCode int64, quantity int) (domain.StockRecord, error) {
	if quantity < 0 {
		return domain.StockRecord{}, fmt.Errorf("create stock: negative quantity %d", quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stocks[productCode]; exists {
		return domain.StockRecord{}, fmt.Errorf("product %d already stocked: %w", productCode, port.ErrConflict)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	s := domain.StockRecord{
		StockCode:   m.nextCode,
		ProductCode: productCode,
		Quantity:    quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.nextCode++
	m.stocks[productCode] = s

	return s, nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return nil
}
