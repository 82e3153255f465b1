package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-service/internal/core/domain"
	"github.com/rl1809/stock-service/internal/port"
)

const (
	idempotencyKeyPrefix = "purchase"
	releaseTimeout       = 2 * time.Second
)

type PurchaseInput struct {
	ProductCode int64
	Quantity    int
	// IdempotencyKey is optional; it is ignored when no IdempotencyStore is configured.
	IdempotencyKey string
}

type Option func(*StockService)

func WithIdempotency(store port.IdempotencyStore) Option {
	return func(s *StockService) {
		s.idempotency = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *StockService) {
		s.now = now
	}
}

// StockService runs the stock query and purchase workflows. Every step is sequential;
// concurrent purchases of one product are arbitrated by the repository's guarded decrement.
type StockService struct {
	catalog     port.CatalogClient
	stocks      port.StockRepository
	idempotency port.IdempotencyStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewStockService(catalog port.CatalogClient, stocks port.StockRepository, logger *zap.Logger, opts ...Option) *StockService {
	s := &StockService{
		catalog: catalog,
		stocks:  stocks,
		logger:  logger,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetStock validates the product against the catalog and returns its stock row.
func (s *StockService) GetStock(ctx context.Context, productCode int64) (domain.StockSummary, error) {
	if productCode <= 0 {
		return domain.StockSummary{}, domain.InvalidInput("product code must be a positive integer, got %d", productCode)
	}

	if _, err := s.catalog.FetchProduct(ctx, productCode); err != nil {
		return domain.StockSummary{}, domain.AsError(err, productCode)
	}

	stock, err := s.stocks.GetByProductCode(ctx, productCode)
	if err != nil {
		return domain.StockSummary{}, s.storageError(err, productCode, "get stock")
	}

	return stock.Summary(), nil
}

// Purchase decrements stock for an active catalog product.
func (s *StockService) Purchase(ctx context.Context, in PurchaseInput) (result domain.PurchaseResult, err error) {
	if in.ProductCode <= 0 {
		return result, domain.InvalidInput("product code must be a positive integer, got %d", in.ProductCode)
	}
	if in.Quantity <= 0 {
		return result, domain.InvalidInput("quantity must be a positive integer, got %d", in.Quantity)
	}

	if in.IdempotencyKey != "" && s.idempotency != nil {
		key := fmt.Sprintf("%s:%d:%s", idempotencyKeyPrefix, in.ProductCode, in.IdempotencyKey)

		token, ok, acquireErr := s.idempotency.Acquire(ctx, key)
		if acquireErr != nil {
			s.logger.Error("idempotency check failed",
				zap.Int64("product_code", in.ProductCode), zap.Error(acquireErr))
			return result, domain.NewError(domain.KindStorageFault, in.ProductCode, acquireErr)
		}
		if !ok {
			s.logger.Warn("duplicate purchase request",
				zap.Int64("product_code", in.ProductCode), zap.String("idempotency_key", in.IdempotencyKey))
			return result, &domain.Error{Kind: domain.KindDuplicateRequest, ProductCode: in.ProductCode}
		}

		// a failed purchase frees the key so the client can retry it
		defer func() {
			if err == nil {
				return
			}
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if releaseErr := s.idempotency.Release(releaseCtx, key, token); releaseErr != nil {
				s.logger.Error("failed to release idempotency key",
					zap.String("key", key), zap.Error(releaseErr))
			}
		}()
	}

	return s.purchase(ctx, in.ProductCode, in.Quantity)
}

func (s *StockService) purchase(ctx context.Context, productCode int64, quantity int) (domain.PurchaseResult, error) {
	product, err := s.catalog.FetchProduct(ctx, productCode)
	if err != nil {
		return domain.PurchaseResult{}, domain.AsError(err, productCode)
	}

	if !product.Active {
		s.logger.Warn("purchase rejected: product inactive", zap.Int64("product_code", productCode))
		return domain.PurchaseResult{}, domain.NewError(domain.KindProductInactive, productCode, nil)
	}

	stock, err := s.stocks.GetByProductCode(ctx, productCode)
	if err != nil {
		return domain.PurchaseResult{}, s.storageError(err, productCode, "get stock")
	}

	if stock.Quantity < quantity {
		return domain.PurchaseResult{}, s.insufficient(productCode, quantity, stock.Quantity)
	}

	updated, err := s.stocks.Decrement(ctx, productCode, quantity, s.now())
	if errors.Is(err, port.ErrInsufficientStock) {
		// sold down between the read and the guarded decrement
		return domain.PurchaseResult{}, s.insufficient(productCode, quantity, updated.Quantity)
	}
	if err != nil {
		return domain.PurchaseResult{}, s.storageError(err, productCode, "decrement stock")
	}
	previous := updated.Quantity + quantity

	s.logger.Info("purchase completed",
		zap.Int64("product_code", productCode),
		zap.Int("quantity", quantity),
		zap.Int("previous_quantity", previous),
		zap.Int("current_quantity", updated.Quantity))

	return domain.PurchaseResult{
		StockCode:         updated.StockCode,
		ProductCode:       productCode,
		ProductName:       product.Name,
		QuantityPurchased: quantity,
		PreviousQuantity:  previous,
		CurrentQuantity:   updated.Quantity,
		PurchaseDate:      updated.UpdatedAt,
	}, nil
}

func (s *StockService) insufficient(productCode int64, requested, available int) *domain.Error {
	s.logger.Warn("purchase rejected: insufficient stock",
		zap.Int64("product_code", productCode),
		zap.Int("available", available),
		zap.Int("requested", requested))
	return domain.InsufficientStock(productCode, requested, available)
}

func (s *StockService) storageError(err error, productCode int64, op string) *domain.Error {
	fields := []zap.Field{zap.Int64("product_code", productCode), zap.String("op", op), zap.Error(err)}

	switch {
	case errors.Is(err, port.ErrNotFound):
		s.logger.Warn("stock row missing for catalog product", fields...)
		return domain.NewError(domain.KindStockNotFound, productCode, nil)
	case errors.Is(err, port.ErrConflict):
		s.logger.Warn("stock conflict", fields...)
		return domain.NewError(domain.KindConflict, productCode, err)
	default:
		s.logger.Error("stock store failure", fields...)
		return domain.NewError(domain.KindStorageFault, productCode, err)
	}
}
