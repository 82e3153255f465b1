package domain

import "time"

// StockRecord is the quantity on hand for one catalog product.
type StockRecord struct {
	StockCode   int64
	ProductCode int64
	Quantity    int
	Version     int64 // bumped on every decrement
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockSummary is the read-only view returned by stock queries.
type StockSummary struct {
	StockCode   int64
	ProductCode int64
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s StockRecord) Summary() StockSummary {
	return StockSummary{
		StockCode:   s.StockCode,
		ProductCode: s.ProductCode,
		Quantity:    s.Quantity,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
