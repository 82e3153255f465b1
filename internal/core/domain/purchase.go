package domain

import "time"

// PurchaseResult describes a completed purchase. It is never persisted.
type PurchaseResult struct {
	StockCode         int64
	ProductCode       int64
	ProductName       string
	QuantityPurchased int
	PreviousQuantity  int
	CurrentQuantity   int
	PurchaseDate      time.Time
}
