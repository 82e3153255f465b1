package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/stock-service/internal/core/domain"
	"github.com/rl1809/stock-service/internal/core/service"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
	readinessTimeout     = 2 * time.Second
	purchaseSucceeded    = "Purchase completed successfully"
)

// StockService is the subset of service.StockService the HTTP layer drives.
type StockService interface {
	GetStock(ctx context.Context, productCode int64) (domain.StockSummary, error)
	Purchase(ctx context.Context, in service.PurchaseInput) (domain.PurchaseResult, error)
}

type HTTPHandler struct {
	stocks StockService
	ready  func(context.Context) error
	logger *zap.Logger
}

type PurchaseHTTPRequest struct {
	Quantity *int64 `json:"quantity"`
}

type StockHTTPResponse struct {
	StockCode   int64     `json:"stockCode"`
	ProductCode int64     `json:"productCode"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PurchaseData struct {
	StockCode         int64     `json:"stockCode"`
	ProductCode       int64     `json:"productCode"`
	ProductName       string    `json:"productName"`
	QuantityPurchased int       `json:"quantityPurchased"`
	PreviousQuantity  int       `json:"previousQuantity"`
	CurrentQuantity   int       `json:"currentQuantity"`
	PurchaseDate      time.Time `json:"purchaseDate"`
}

type PurchaseHTTPResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    PurchaseData `json:"data"`
}

// NewHTTPHandler builds the stock HTTP handler. ready reports store readiness
// for /health; nil means always ready.
func NewHTTPHandler(stocks StockService, ready func(context.Context) error, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{stocks: stocks, ready: ready, logger: logger}
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productCode, err := productCodeParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.stocks.GetStock(r.Context(), productCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StockHTTPResponse{
		StockCode:   summary.StockCode,
		ProductCode: summary.ProductCode,
		Quantity:    summary.Quantity,
		CreatedAt:   summary.CreatedAt,
		UpdatedAt:   summary.UpdatedAt,
	})
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	productCode, err := productCodeParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	quantity, err := decodeQuantity(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.stocks.Purchase(r.Context(), service.PurchaseInput{
		ProductCode:    productCode,
		Quantity:       quantity,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PurchaseHTTPResponse{
		Success: true,
		Message: purchaseSucceeded,
		Data: PurchaseData{
			StockCode:         result.StockCode,
			ProductCode:       result.ProductCode,
			ProductName:       result.ProductName,
			QuantityPurchased: result.QuantityPurchased,
			PreviousQuantity:  result.PreviousQuantity,
			CurrentQuantity:   result.CurrentQuantity,
			PurchaseDate:      result.PurchaseDate,
		},
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := h.ready(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func productCodeParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "productCode")
	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || code <= 0 {
		return 0, domain.InvalidInput("productCode must be a positive integer, got %q", raw)
	}
	return code, nil
}

func decodeQuantity(body io.Reader) (int, error) {
	var req PurchaseHTTPRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return 0, domain.InvalidInput("request body too large")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return 0, domain.InvalidInput("quantity must be a positive integer")
		}
		return 0, domain.InvalidInput("invalid request body")
	}
	if req.Quantity == nil || *req.Quantity <= 0 || *req.Quantity > math.MaxInt32 {
		return 0, domain.InvalidInput("quantity must be a positive integer")
	}
	return int(*req.Quantity), nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
