package domain

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the stock workflows can report.
type Kind string

const (
	KindProductNotFound       Kind = "ProductNotFound"
	KindProductInactive       Kind = "ProductInactive"
	KindStockNotFound         Kind = "StockNotFound"
	KindInsufficientStock     Kind = "InsufficientStock"
	KindCatalogTimeout        Kind = "CatalogTimeout"
	KindCatalogUnreachable    Kind = "CatalogUnreachable"
	KindCatalogRemoteFault    Kind = "CatalogRemoteFault"
	KindCatalogInvalidRequest Kind = "CatalogInvalidRequest"
	KindCatalogUnauthorized   Kind = "CatalogUnauthorized"
	KindConflict              Kind = "Conflict"
	KindStorageFault          Kind = "StorageFault"
	KindDuplicateRequest      Kind = "DuplicateRequest"
	KindInvalidInput          Kind = "InvalidInput"
	KindUnexpected            Kind = "Unexpected"
)

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrProductNotFound       = &Error{Kind: KindProductNotFound}
	ErrProductInactive       = &Error{Kind: KindProductInactive}
	ErrStockNotFound         = &Error{Kind: KindStockNotFound}
	ErrInsufficientStock     = &Error{Kind: KindInsufficientStock}
	ErrCatalogTimeout        = &Error{Kind: KindCatalogTimeout}
	ErrCatalogUnreachable    = &Error{Kind: KindCatalogUnreachable}
	ErrCatalogRemoteFault    = &Error{Kind: KindCatalogRemoteFault}
	ErrCatalogInvalidRequest = &Error{Kind: KindCatalogInvalidRequest}
	ErrCatalogUnauthorized   = &Error{Kind: KindCatalogUnauthorized}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrStorageFault          = &Error{Kind: KindStorageFault}
	ErrDuplicateRequest      = &Error{Kind: KindDuplicateRequest}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrUnexpected            = &Error{Kind: KindUnexpected}
)

// Error is the single error type that leaves the core.
// Detail and Err are diagnostics for logs; Message is what callers may show.
type Error struct {
	Kind        Kind
	ProductCode int64
	Requested   int
	Available   int
	// Status is the remote HTTP status for CatalogUnauthorized.
	Status int
	Detail string
	Err    error
}

func NewError(kind Kind, productCode int64, cause error) *Error {
	return &Error{Kind: kind, ProductCode: productCode, Err: cause}
}

func InsufficientStock(productCode int64, requested, available int) *Error {
	return &Error{
		Kind:        KindInsufficientStock,
		ProductCode: productCode,
		Requested:   requested,
		Available:   available,
	}
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Message returns the caller-safe description. It never includes Err.
func (e *Error) Message() string {
	switch e.Kind {
	case KindProductNotFound:
		return fmt.Sprintf("product with code %d not found", e.ProductCode)
	case KindProductInactive:
		return fmt.Sprintf("product with code %d is not active", e.ProductCode)
	case KindStockNotFound:
		return fmt.Sprintf("stock not found for product %d", e.ProductCode)
	case KindInsufficientStock:
		return fmt.Sprintf("insufficient stock. Available: %d, Requested: %d", e.Available, e.Requested)
	case KindCatalogTimeout:
		return "products service did not respond in time"
	case KindCatalogUnreachable:
		return "products service is not available"
	case KindCatalogRemoteFault:
		return "products service failed to process the request"
	case KindCatalogInvalidRequest:
		return fmt.Sprintf("product code %d is not valid", e.ProductCode)
	case KindCatalogUnauthorized:
		return "authorization error with products service"
	case KindConflict:
		return fmt.Sprintf("stock for product %d was modified concurrently", e.ProductCode)
	case KindStorageFault:
		return "stock store failure"
	case KindDuplicateRequest:
		return "duplicate request"
	case KindInvalidInput:
		if e.Detail != "" {
			return e.Detail
		}
		return "invalid input"
	default:
		return fmt.Sprintf("unexpected error while processing product %d", e.ProductCode)
	}
}

// KindOf extracts the Kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindUnexpected
}

// AsError returns err as an *Error, wrapping foreign errors as Unexpected.
func AsError(err error, productCode int64) *Error {
	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}
	return NewError(KindUnexpected, productCode, err)
}
