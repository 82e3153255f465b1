package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type Env string

const (
	EnvLocal  Env = "local"
	EnvDocker Env = "docker"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds the stock service settings read from the environment.
type Config struct {
	AppEnv   Env    `env:"APP_ENV" envDefault:"local"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":3002"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	// ProductsServiceURL is the catalog base; the product code is appended.
	ProductsServiceURL string `env:"PRODUCTS_SERVICE_URL" envDefault:"http://localhost:3001"`
	// HTTPTimeoutMS bounds each catalog call, in milliseconds.
	HTTPTimeoutMS int `env:"HTTP_TIMEOUT" envDefault:"5000"`

	StockStore        string `env:"STOCK_STORE" envDefault:"mysql"`
	MySQLDSN          string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/stockflow?parseTime=true"`
	MySQLMaxOpenConns int    `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"50"`
	MySQLMaxIdleConns int    `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"25"`
	AutoMigrate       bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// RedisAddr enables purchase idempotency when set.
	RedisAddr      string        `env:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	OTelEnabled       bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSamplingRatio float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"1.0"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.AppEnv != EnvLocal && c.AppEnv != EnvDocker {
		return fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", c.AppEnv)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.GRPCAddr == "" {
		return fmt.Errorf("GRPC_ADDR is required")
	}
	u, err := url.Parse(c.ProductsServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PRODUCTS_SERVICE_URL: %q", c.ProductsServiceURL)
	}
	if c.HTTPTimeoutMS <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch c.StockStore {
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required")
		}
		if _, err := mysql.ParseDSN(c.MySQLDSN); err != nil {
			return fmt.Errorf("invalid MYSQL_DSN: %w", err)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid STOCK_STORE: %s (must be 'mysql' or 'memory')", c.StockStore)
	}
	if c.RedisAddr != "" && c.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.OTelEnabled && (c.OTelSamplingRatio < 0 || c.OTelSamplingRatio > 1) {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be in [0, 1]")
	}
	return nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// Log prints the loaded configuration with credentials masked.
func (c Config) Log(logger *zap.Logger) {
	logger.Info("config loaded",
		zap.String("app_env", string(c.AppEnv)),
		zap.String("http_addr", c.HTTPAddr),
		zap.String("grpc_addr", c.GRPCAddr),
		zap.String("products_service_url", c.ProductsServiceURL),
		zap.Duration("http_timeout", c.HTTPTimeout()),
		zap.String("stock_store", c.StockStore),
		zap.String("mysql_dsn", maskDSN(c.MySQLDSN)),
		zap.Bool("auto_migrate", c.AutoMigrate),
		zap.String("redis_addr", c.RedisAddr),
		zap.Duration("idempotency_ttl", c.IdempotencyTTL),
		zap.Duration("shutdown_timeout", c.ShutdownTimeout),
		zap.Bool("otel_enabled", c.OTelEnabled),
		zap.String("otel_endpoint", c.OTelEndpoint),
		zap.Float64("otel_sampling_ratio", c.OTelSamplingRatio),
	)
}

// MySQLConnDSN returns MYSQL_DSN with parseTime forced on; stock rows scan
// DATETIME columns into time.Time.
func (c Config) MySQLConnDSN() string {
	cfg, err := mysql.ParseDSN(c.MySQLDSN)
	if err != nil {
		return c.MySQLDSN
	}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func maskDSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "***"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "***"
	}
	return cfg.FormatDSN()
}
