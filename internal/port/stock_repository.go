package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/stock-service/internal/core/domain"
)

var (
	// ErrNotFound is returned when no stock row exists for a product code.
	ErrNotFound = errors.New("stock not found")
	// ErrInsufficientStock is returned by Decrement when the row holds fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict covers unique, foreign-key and check constraint violations.
	ErrConflict = errors.New("stock conflict")
)

type StockRepository interface {
	// GetByProductCode returns ErrNotFound when the product has no stock row
	GetByProductCode(ctx context.Context, productCode int64) (domain.StockRecord, error)

	// Decrement atomically subtracts quantity if at least that much is on hand, bumps the version
	// and stamps UpdatedAt with at. Returns the updated record, ErrNotFound for a missing row, or
	// the unchanged record together with ErrInsufficientStock when the guard fails
	Decrement(ctx context.Context, productCode int64, quantity int, at time.Time) (domain.StockRecord, error)

	// Create provisions a stock row; ErrConflict if the product already has one
	Create(ctx context.Context, productCode int64, quantity int) (domain.StockRecord, error)

	Ping(ctx context.Context) error
}
