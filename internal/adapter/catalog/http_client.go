package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/rl1809/stock-service/internal/core/domain"
)

const (
	maxResponseBytes = 1 << 20
	// maxDetailBytes bounds the remote body kept on errors and in logs.
	maxDetailBytes = 4 << 10
)

// HTTPClient fetches products from the catalog service. One request per call, no retries, no cache.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	logger.Info("catalog client initialized",
		zap.String("url", baseURL),
		zap.Duration("timeout", timeout))

	return &HTTPClient{
		baseURL: baseURL,
		timeout: timeout,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type productPayload struct {
	ProductCode int64           `json:"productCode"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	CreatedAt   catalogTime     `json:"createdAt"`
	UpdatedAt   catalogTime     `json:"updatedAt"`
}

func (c *HTTPClient) FetchProduct(ctx context.Context, productCode int64) (domain.Product, error) {
	url := c.baseURL + strconv.FormatInt(productCode, 10)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("querying products service", zap.Int64("product_code", productCode), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Product{}, c.fail(productCode, url, failure{cause: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Product{}, c.fail(productCode, url, failure{transportErr: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Product{}, c.fail(productCode, url, failure{status: resp.StatusCode, transportErr: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Product{}, c.fail(productCode, url, failure{status: resp.StatusCode, body: body})
	}

	var payload productPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Product{}, c.fail(productCode, url, failure{status: resp.StatusCode, body: body, cause: fmt.Errorf("decode product: %w", err)})
	}
	if payload.ProductCode == 0 {
		return domain.Product{}, c.fail(productCode, url, failure{status: resp.StatusCode, empty: true})
	}

	c.logger.Debug("product fetched", zap.Int64("product_code", productCode))

	return domain.Product{
		ProductCode: payload.ProductCode,
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Active:      payload.Active,
		CreatedAt:   time.Time(payload.CreatedAt),
		UpdatedAt:   time.Time(payload.UpdatedAt),
	}, nil
}

// failure is everything known about a failed catalog call.
type failure struct {
	status       int
	body         []byte
	transportErr error
	cause        error
	// empty marks a 2xx response that carried no product.
	empty bool
}

func (c *HTTPClient) fail(productCode int64, url string, f failure) *domain.Error {
	derr := classify(productCode, f)

	fields := []zap.Field{
		zap.String("kind", string(derr.Kind)),
		zap.Int64("product_code", productCode),
		zap.String("url", url),
		zap.Duration("timeout", c.timeout),
	}
	if f.status != 0 {
		fields = append(fields, zap.Int("status", f.status))
	}

	switch derr.Kind {
	case domain.KindProductNotFound, domain.KindCatalogInvalidRequest:
		if f.empty {
			fields = append(fields, zap.Bool("empty_response", true))
		}
		c.logger.Warn("products service rejected lookup", fields...)
	case domain.KindCatalogRemoteFault, domain.KindUnexpected:
		fields = append(fields, zap.ByteString("response", truncate(f.body)), zap.Error(derr.Err), zap.Stack("stack"))
		c.logger.Error("products service call failed", fields...)
	default:
		fields = append(fields, zap.Error(derr.Err))
		c.logger.Error("products service call failed", fields...)
	}

	return derr
}

// classify maps a failed call onto the closed set of catalog error kinds.
func classify(productCode int64, f failure) *domain.Error {
	err := f.transportErr
	if err == nil {
		err = f.cause
	}

	switch {
	case f.transportErr != nil && isTimeout(f.transportErr):
		return domain.NewError(domain.KindCatalogTimeout, productCode, err)
	case f.empty:
		return domain.NewError(domain.KindProductNotFound, productCode, nil)
	case f.cause == nil && f.status == http.StatusNotFound:
		return domain.NewError(domain.KindProductNotFound, productCode, nil)
	case f.cause == nil && f.status == http.StatusBadRequest:
		return domain.NewError(domain.KindCatalogInvalidRequest, productCode, nil)
	case f.cause == nil && (f.status == http.StatusUnauthorized || f.status == http.StatusForbidden):
		derr := domain.NewError(domain.KindCatalogUnauthorized, productCode, nil)
		derr.Status = f.status
		return derr
	case f.transportErr != nil && isUnreachable(f.transportErr):
		return domain.NewError(domain.KindCatalogUnreachable, productCode, err)
	case f.cause == nil && (f.status != 0 || f.transportErr != nil):
		derr := domain.NewError(domain.KindCatalogRemoteFault, productCode, err)
		derr.Detail = string(truncate(f.body))
		if derr.Detail == "" && err != nil {
			derr.Detail = err.Error()
		}
		if err == nil {
			derr.Err = fmt.Errorf("products service returned status %d", f.status)
		}
		return derr
	default:
		derr := domain.NewError(domain.KindUnexpected, productCode, err)
		if err != nil {
			derr.Detail = err.Error()
		}
		return derr
	}
}

func truncate(body []byte) []byte {
	if len(body) > maxDetailBytes {
		return body[:maxDetailBytes]
	}
	return body
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
