package port

import (
	"context"

	"github.com/rl1809/stock-service/internal/core/domain"
)

type CatalogClient interface {
	// FetchProduct looks up a product in the remote catalog. Failures are *domain.Error
	FetchProduct(ctx context.Context, productCode int64) (domain.Product, error)
}
