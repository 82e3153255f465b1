package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/stock-service/internal/core/domain"
)

type ErrorHTTPResponse struct {
	Success     bool              `json:"success"`
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	ProductCode int64             `json:"productCode,omitempty"`
	Details     *ErrorDetailsHTTP `json:"details,omitempty"`
}

type ErrorDetailsHTTP struct {
	Requested int `json:"requested"`
	Available int `json:"available"`
}

// statusFor maps an error kind to the HTTP status returned to callers.
func statusFor(err *domain.Error) int {
	switch err.Kind {
	case domain.KindProductNotFound, domain.KindStockNotFound:
		return http.StatusNotFound
	case domain.KindProductInactive,
		domain.KindInsufficientStock,
		domain.KindInvalidInput,
		domain.KindCatalogInvalidRequest:
		return http.StatusBadRequest
	case domain.KindCatalogTimeout, domain.KindCatalogUnreachable:
		return http.StatusServiceUnavailable
	case domain.KindCatalogRemoteFault:
		return http.StatusBadGateway
	case domain.KindCatalogUnauthorized:
		if err.Status == http.StatusUnauthorized || err.Status == http.StatusForbidden {
			return err.Status
		}
		return http.StatusBadGateway
	case domain.KindConflict, domain.KindDuplicateRequest:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	derr := domain.AsError(err, 0)
	status := statusFor(derr)

	if status >= http.StatusInternalServerError && derr.Kind == domain.KindUnexpected {
		h.logger.Error("unhandled error",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int64("product_code", derr.ProductCode),
			zap.Error(err),
		)
	}

	resp := ErrorHTTPResponse{
		Success:     false,
		Error:       string(derr.Kind),
		Message:     derr.Message(),
		ProductCode: derr.ProductCode,
	}
	if derr.Kind == domain.KindInsufficientStock {
		resp.Details = &ErrorDetailsHTTP{Requested: derr.Requested, Available: derr.Available}
	}

	writeJSON(w, status, resp)
}
