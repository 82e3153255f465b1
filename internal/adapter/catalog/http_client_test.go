package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/stock-service/internal/core/domain"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *HTTPClient {
	return NewHTTPClient(baseURL, timeout, zaptest.NewLogger(t))
}

func TestFetchProduct_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"productCode": 1,
			"name": "Laptop Dell Inspiron",
			"description": "Intel Core i5, 8GB RAM",
			"price": 1500000.50,
			"active": true,
			"createdAt": "2025-11-11T10:30:00",
			"updatedAt": "2025-11-11T15:45:00Z"
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/api/products", time.Second)

	product, err := client.FetchProduct(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "/api/products/1", gotPath)
	assert.Equal(t, int64(1), product.ProductCode)
	assert.Equal(t, "Laptop Dell Inspiron", product.Name)
	assert.Equal(t, "1500000.5", product.Price.String())
	assert.True(t, product.Active)
	assert.Equal(t, time.Date(2025, 11, 11, 10, 30, 0, 0, time.UTC), product.CreatedAt)
	assert.Equal(t, time.Date(2025, 11, 11, 15, 45, 0, 0, time.UTC), product.UpdatedAt)
}

func TestFetchProduct_LargeBody(t *testing.T) {
	description := strings.Repeat("é", 2100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"productCode": 1,
			"name":        "Laptop Dell Inspiron",
			"description": description,
			"price":       "100",
			"active":      true,
			"createdAt":   "2025-11-11T10:30:00",
			"updatedAt":   "2025-11-11T10:30:00",
		})
	}))
	defer srv.Close()

	product, err := newTestClient(t, srv.URL, time.Second).FetchProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, description, product.Description)
	assert.True(t, product.Active)
}

func TestFetchProduct_EmptyPayloadIsNotFound(t *testing.T) {
	for _, body := range []string{`null`, `{}`} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, time.Second).FetchProduct(context.Background(), 9)

			var derr *domain.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, domain.KindProductNotFound, derr.Kind)
			assert.Equal(t, "product with code 9 not found", derr.Message())
		})
	}
}

func TestFetchProduct_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   domain.Kind
	}{
		{name: "not found", status: http.StatusNotFound, kind: domain.KindProductNotFound},
		{name: "bad request", status: http.StatusBadRequest, kind: domain.KindCatalogInvalidRequest},
		{name: "unauthorized", status: http.StatusUnauthorized, kind: domain.KindCatalogUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, kind: domain.KindCatalogUnauthorized},
		{name: "internal error", status: http.StatusInternalServerError, body: `{"error":"db down"}`, kind: domain.KindCatalogRemoteFault},
		{name: "service unavailable", status: http.StatusServiceUnavailable, kind: domain.KindCatalogRemoteFault},
		{name: "unrecognized status", status: http.StatusTeapot, kind: domain.KindCatalogRemoteFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL+"/", time.Second).FetchProduct(context.Background(), 7)

			var derr *domain.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.Equal(t, int64(7), derr.ProductCode)
		})
	}
}

func TestFetchProduct_UnauthorizedKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, time.Second).FetchProduct(context.Background(), 1)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusForbidden, derr.Status)
}

func TestFetchProduct_RemoteFaultCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream exploded"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, time.Second).FetchProduct(context.Background(), 1)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.KindCatalogRemoteFault, derr.Kind)
	assert.Contains(t, derr.Detail, "upstream exploded")
	assert.NotContains(t, derr.Message(), "upstream exploded")
}

func TestFetchProduct_RemoteFaultDetailIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 3*maxDetailBytes)))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, time.Second).FetchProduct(context.Background(), 1)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.KindCatalogRemoteFault, derr.Kind)
	assert.Len(t, derr.Detail, maxDetailBytes)
}

func TestFetchProduct_FailureLogFields(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{name: "not found", status: http.StatusNotFound, level: zapcore.WarnLevel},
		{name: "remote fault", status: http.StatusInternalServerError, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			core, logs := observer.New(zapcore.WarnLevel)
			client := NewHTTPClient(srv.URL+"/api/products", 750*time.Millisecond, zap.New(core))

			_, err := client.FetchProduct(context.Background(), 12)
			require.Error(t, err)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, int64(12), fields["product_code"])
			assert.Equal(t, srv.URL+"/api/products/12", fields["url"])
			assert.Equal(t, 750*time.Millisecond, fields["timeout"])
			assert.Equal(t, int64(tt.status), fields["status"])
		})
	}
}

func TestFetchProduct_MalformedBodyIsUnexpected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"productCode": "not-a-number"`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, time.Second).FetchProduct(context.Background(), 1)
	assert.Equal(t, domain.KindUnexpected, domain.KindOf(err))
}

func TestFetchProduct_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestClient(t, srv.URL, 50*time.Millisecond).FetchProduct(context.Background(), 1)

	assert.Equal(t, domain.KindCatalogTimeout, domain.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchProduct_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL, time.Second).FetchProduct(ctx, 1)
	assert.Equal(t, domain.KindCatalogTimeout, domain.KindOf(err))
}

func TestFetchProduct_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestClient(t, addr, time.Second).FetchProduct(context.Background(), 1)
	assert.Equal(t, domain.KindCatalogUnreachable, domain.KindOf(err))
}

func TestClassify_TransportErrors(t *testing.T) {
	wrap := func(err error) error {
		return &url.Error{Op: "Get", URL: "http://catalog/1", Err: err}
	}

	tests := []struct {
		name string
		f    failure
		kind domain.Kind
	}{
		{
			name: "dns failure",
			f:    failure{transportErr: wrap(&net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "catalog"}})},
			kind: domain.KindCatalogUnreachable,
		},
		{
			name: "deadline",
			f:    failure{transportErr: wrap(context.DeadlineExceeded)},
			kind: domain.KindCatalogTimeout,
		},
		{
			name: "other transport error",
			f:    failure{transportErr: wrap(errors.New("tls: handshake failure"))},
			kind: domain.KindCatalogRemoteFault,
		},
		{
			name: "decode error",
			f:    failure{status: http.StatusOK, cause: errors.New("unexpected EOF")},
			kind: domain.KindUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derr := classify(1, tt.f)
			assert.Equal(t, tt.kind, derr.Kind)
		})
	}
}

func TestCatalogTime_Formats(t *testing.T) {
	var ct catalogTime

	require.NoError(t, ct.UnmarshalJSON([]byte(`"2025-11-11T10:30:00.123"`)))
	assert.Equal(t, time.Date(2025, 11, 11, 10, 30, 0, 123000000, time.UTC), time.Time(ct))

	require.NoError(t, ct.UnmarshalJSON([]byte(`"2025-11-11T10:30:00-05:00"`)))
	assert.Equal(t, time.Date(2025, 11, 11, 15, 30, 0, 0, time.UTC), time.Time(ct))

	assert.Error(t, ct.UnmarshalJSON([]byte(`"11/11/2025"`)))
}
