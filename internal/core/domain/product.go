package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The catalog service owns it; this service only reads it.
type Product struct {
	ProductCode int64
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
