package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/stock-service/internal/adapter/catalog"
	"github.com/rl1809/stock-service/internal/adapter/handler"
	"github.com/rl1809/stock-service/internal/adapter/storage"
	"github.com/rl1809/stock-service/internal/config"
	"github.com/rl1809/stock-service/internal/core/service"
	"github.com/rl1809/stock-service/internal/logging"
	"github.com/rl1809/stock-service/internal/observability"
	"github.com/rl1809/stock-service/internal/port"
	"github.com/rl1809/stock-service/internal/shutdown"
)

const (
	serviceName    = "stock-service"
	startupTimeout = 30 * time.Second
	redisPoolSize  = 100
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		ServiceName: serviceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logging.Sync(logger)

	cfg.Log(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Fatal("stock service stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr := shutdown.New(cfg.ShutdownTimeout, logger)

	startCtx, startCancel := context.WithTimeout(ctx, startupTimeout)
	defer startCancel()

	// Hooks run in reverse: health, http, grpc, redis, mysql, tracer.
	shutdownTracer, err := observability.Init(startCtx, observability.Config{
		Enabled:       cfg.OTelEnabled,
		OTLPEndpoint:  cfg.OTelEndpoint,
		SamplingRatio: cfg.OTelSamplingRatio,
		ServiceName:   serviceName,
		Environment:   string(cfg.AppEnv),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	mgr.Add("tracer", shutdownTracer)

	stocks, err := openStockStore(startCtx, cfg, mgr, logger)
	if err != nil {
		return err
	}

	var opts []service.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: redisPoolSize,
		})
		if err := rdb.Ping(startCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		mgr.Add("redis", shutdown.Close(rdb))
		opts = append(opts, service.WithIdempotency(storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)))
		logger.Info("connected to redis, purchase idempotency enabled", zap.String("addr", cfg.RedisAddr))
	}

	catalogClient := catalog.NewHTTPClient(cfg.ProductsServiceURL, cfg.HTTPTimeout(), logger.Named("catalog"))
	stockService := service.NewStockService(catalogClient, stocks, logger.Named("service"), opts...)

	// gRPC carries health and reflection only.
	grpcServer := grpc.NewServer()
	health := handler.NewHealthServer()
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
			cancel()
		}
	}()
	mgr.Add("grpc", shutdown.ShutdownGRPCServer(grpcServer))

	httpLogger := logger.Named("http")
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHTTPHandler(stockService, stocks.Ping, httpLogger), httpLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()
	mgr.Add("http", shutdown.ShutdownHTTPServer(httpServer))

	if err := stocks.Ping(startCtx); err != nil {
		logger.Warn("stock store not ready, gRPC health stays NOT_SERVING", zap.Error(err))
	} else {
		health.SetServing()
	}
	mgr.Add("health", shutdown.SetHealthNotServing(health))

	return mgr.Wait(ctx)
}

func openStockStore(ctx context.Context, cfg config.Config, mgr *shutdown.Manager, logger *zap.Logger) (port.StockRepository, error) {
	if cfg.StockStore == config.StoreMemory {
		logger.Warn("using in-memory stock store; data is lost on restart")
		return storage.NewMemoryAdapter(), nil
	}

	db, err := sql.Open("mysql", cfg.MySQLConnDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQLMaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}
	mgr.Add("mysql", shutdown.Close(db))
	logger.Info("connected to mysql")

	if cfg.AutoMigrate {
		if err := storage.Migrate(ctx, db, logger.Named("migrate")); err != nil {
			return nil, err
		}
	}

	return storage.NewMySQLAdapter(db), nil
}
