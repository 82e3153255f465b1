//go:build integration

package service_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/stock-service/internal/adapter/catalog"
	"github.com/rl1809/stock-service/internal/adapter/storage"
	"github.com/rl1809/stock-service/internal/core/domain"
	"github.com/rl1809/stock-service/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	stocks  *storage.MySQLAdapter
	catalog *catalog.HTTPClient
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/stockflow?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	logger := zaptest.NewLogger(t)
	require.NoError(t, storage.Migrate(context.Background(), db, logger))

	products := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/api/products/")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"productCode": json.Number(code),
			"name":        "Product " + code,
			"description": "integration fixture",
			"price":       "100.00",
			"active":      true,
			"createdAt":   "2025-11-12T10:00:00",
			"updatedAt":   "2025-11-12T10:00:00",
		})
	}))

	t.Cleanup(func() {
		products.Close()
		rdb.Close()
		db.Close()
	})

	return &testEnv{
		redis:   rdb,
		mysql:   db,
		stocks:  storage.NewMySQLAdapter(db),
		catalog: catalog.NewHTTPClient(products.URL+"/api/products", 2*time.Second, logger),
	}
}

// freshProduct provisions a product code no earlier run has used.
func freshProduct(t *testing.T, env *testEnv, quantity int) int64 {
	t.Helper()
	code := time.Now().UnixNano() % 1_000_000_000_000
	_, err := env.stocks.Create(context.Background(), code, quantity)
	require.NoError(t, err)
	t.Cleanup(func() {
		env.mysql.ExecContext(context.Background(), `DELETE FROM stock WHERE product_code = ?`, code)
	})
	return code
}

func TestIntegration_ConcurrentPurchasesNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	initialStock := 10
	code := freshProduct(t, env, initialStock)

	svc := service.NewStockService(env.catalog, env.stocks, zaptest.NewLogger(t))

	var successCount, shortCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(ctx, service.PurchaseInput{ProductCode: code, Quantity: 1})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				shortCount.Add(1)
			default:
				t.Errorf("unexpected error kind %s", domain.KindOf(err))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, int32(20-initialStock), shortCount.Load())

	stock, err := env.stocks.GetByProductCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Quantity)
	assert.Equal(t, int64(initialStock), stock.Version)
}

func TestIntegration_IdempotencyPreventsDoublePurchase(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	code := freshProduct(t, env, 10)

	svc := service.NewStockService(env.catalog, env.stocks, zaptest.NewLogger(t),
		service.WithIdempotency(storage.NewRedisAdapter(env.redis, time.Minute)))

	key := "same-request-" + uuid.NewString()
	t.Cleanup(func() {
		env.redis.Del(context.Background(), fmt.Sprintf("idempotency:purchase:%d:%s", code, key))
	})

	result, err := svc.Purchase(ctx, service.PurchaseInput{ProductCode: code, Quantity: 1, IdempotencyKey: key})
	require.NoError(t, err)
	assert.Equal(t, 9, result.CurrentQuantity)

	_, err = svc.Purchase(ctx, service.PurchaseInput{ProductCode: code, Quantity: 1, IdempotencyKey: key})
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	stock, err := env.stocks.GetByProductCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 9, stock.Quantity)
}

func TestIntegration_FailedPurchaseReleasesKey(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	code := freshProduct(t, env, 1)

	svc := service.NewStockService(env.catalog, env.stocks, zaptest.NewLogger(t),
		service.WithIdempotency(storage.NewRedisAdapter(env.redis, time.Minute)))

	key := "retry-" + uuid.NewString()
	t.Cleanup(func() {
		env.redis.Del(context.Background(), fmt.Sprintf("idempotency:purchase:%d:%s", code, key))
	})

	_, err := svc.Purchase(ctx, service.PurchaseInput{ProductCode: code, Quantity: 5, IdempotencyKey: key})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Restock out of band, then retry with the same key.
	_, err = env.mysql.ExecContext(ctx, `UPDATE stock SET quantity = 10, version = version + 1 WHERE product_code = ?`, code)
	require.NoError(t, err)

	result, err := svc.Purchase(ctx, service.PurchaseInput{ProductCode: code, Quantity: 5, IdempotencyKey: key})
	require.NoError(t, err)
	assert.Equal(t, 10, result.PreviousQuantity)
	assert.Equal(t, 5, result.CurrentQuantity)
}
