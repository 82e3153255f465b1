package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/stock-service/internal/adapter/catalog"
	"github.com/rl1809/stock-service/internal/adapter/storage"
	"github.com/rl1809/stock-service/internal/config"
	"github.com/rl1809/stock-service/internal/core/domain"
	"github.com/rl1809/stock-service/internal/core/service"
	"github.com/rl1809/stock-service/internal/logging"
	"github.com/rl1809/stock-service/internal/port"
)

const usage = `stockctl operates the stock store directly, using the same environment as the server.

Usage:
  stockctl migrate
  stockctl provision -product CODE -quantity N
  stockctl get -product CODE
  stockctl product -product CODE
  stockctl stress -product CODE -stock N -requests M
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		ServiceName: "stockctl",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := dispatch(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		logging.Sync(logger)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cfg config.Config, logger *zap.Logger, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	productCode := fs.Int64("product", 0, "catalog product code")
	quantity := fs.Int("quantity", 0, "initial quantity for provision")
	initial := fs.Int("stock", 20, "quantity provisioned before stress")
	requests := fs.Int("requests", 50, "concurrent single-unit purchases for stress")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "migrate":
		db, err := openMySQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return storage.Migrate(ctx, db, logger.Named("migrate"))

	case "provision":
		if *productCode <= 0 || *quantity < 0 {
			return fmt.Errorf("provision needs -product > 0 and -quantity >= 0")
		}
		stocks, closeFn, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		stock, err := stocks.Create(ctx, *productCode, *quantity)
		if err != nil {
			return fmt.Errorf("provision product %d: %w", *productCode, err)
		}
		return printJSON(stock.Summary())

	case "get":
		stocks, closeFn, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		svc := newService(cfg, stocks, logger)
		summary, err := svc.GetStock(ctx, *productCode)
		if err != nil {
			return err
		}
		return printJSON(summary)

	case "product":
		client := catalog.NewHTTPClient(cfg.ProductsServiceURL, cfg.HTTPTimeout(), logger.Named("catalog"))
		product, err := client.FetchProduct(ctx, *productCode)
		if err != nil {
			return err
		}
		return printJSON(product)

	case "stress":
		if *productCode <= 0 || *initial < 0 || *requests <= 0 {
			return fmt.Errorf("stress needs -product > 0, -stock >= 0 and -requests > 0")
		}
		stocks, closeFn, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		return stress(ctx, newService(cfg, stocks, logger), stocks, *productCode, *initial, *requests)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// stress provisions a product and fires concurrent single-unit purchases at
// it, then checks that sold units and remaining stock add up.
func stress(ctx context.Context, svc *service.StockService, stocks port.StockRepository, productCode int64, initial, requests int) error {
	if _, err := stocks.Create(ctx, productCode, initial); err != nil {
		return fmt.Errorf("provision product %d (use a fresh product code): %w", productCode, err)
	}

	var success atomic.Int32
	var mu sync.Mutex
	failures := make(map[domain.Kind]int)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(ctx, service.PurchaseInput{ProductCode: productCode, Quantity: 1})
			if err == nil {
				success.Add(1)
				return
			}
			mu.Lock()
			failures[domain.KindOf(err)]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	final, err := stocks.GetByProductCode(ctx, productCode)
	if err != nil {
		return fmt.Errorf("read final stock: %w", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initial)
	fmt.Printf("Total Requests:   %d\n", requests)
	fmt.Printf("Successful:       %d\n", success.Load())
	kinds := make([]string, 0, len(failures))
	for k := range failures {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("Failed %-18s %d\n", k+":", failures[domain.Kind(k)])
	}
	fmt.Printf("Final Stock:      %d\n", final.Quantity)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if final.Quantity < 0 || int(success.Load())+final.Quantity != initial {
		return fmt.Errorf("stock mismatch: %d sold + %d left != %d provisioned", success.Load(), final.Quantity, initial)
	}
	fmt.Println("PASS: sold units and remaining stock add up")
	return nil
}

func newService(cfg config.Config, stocks port.StockRepository, logger *zap.Logger) *service.StockService {
	client := catalog.NewHTTPClient(cfg.ProductsServiceURL, cfg.HTTPTimeout(), logger.Named("catalog"))
	return service.NewStockService(client, stocks, logger.Named("service"))
}

func openStore(ctx context.Context, cfg config.Config) (port.StockRepository, func(), error) {
	if cfg.StockStore == config.StoreMemory {
		return storage.NewMemoryAdapter(), func() {}, nil
	}
	db, err := openMySQL(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
}

func openMySQL(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQLConnDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
