package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/olyamironova/escrow-engine/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr   string `env:"GRPC_ADDR" envDefault:":9090"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	CacheBackend  string        `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"escrow.events"`
	NotifyBuffer  int      `env:"NOTIFY_BUFFER" envDefault:"1024"`
	NotifyWorkers int      `env:"NOTIFY_WORKERS" envDefault:"2"`

	FeeRate             decimal.Decimal `env:"FEE_RATE" envDefault:"0"`
	FeeAccount          string          `env:"FEE_ACCOUNT" envDefault:"fees"`
	CancelThreshold     int             `env:"CANCEL_THRESHOLD" envDefault:"10"`
	BlockDuration       time.Duration   `env:"BLOCK_DURATION" envDefault:"24h"`
	InitTradeTimeout    time.Duration   `env:"INIT_TRADE_TIMEOUT" envDefault:"30m"`
	SweepSchedule       string          `env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	LargeTradeThreshold decimal.Decimal `env:"LARGE_TRADE_THRESHOLD" envDefault:"10000"`
	TxMaxRetries        int             `env:"TX_MAX_RETRIES" envDefault:"3"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set take precedence over the file.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.CacheBackend {
	case "redis", "ristretto", "memory", "none":
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("config: FEE_RATE must be in [0, 1)")
	}
	if c.TxMaxRetries < 0 {
		return errors.New("config: TX_MAX_RETRIES must not be negative")
	}
	return nil
}

// Engine maps the business settings onto the engine configuration.
func (c Config) Engine() core.Config {
	return core.Config{
		FeeRate:             c.FeeRate,
		FeeAccountID:        c.FeeAccount,
		CancelThreshold:     c.CancelThreshold,
		BlockDuration:       c.BlockDuration,
		InitTradeTimeout:    c.InitTradeTimeout,
		LargeTradeThreshold: c.LargeTradeThreshold,
		MaxRetries:          c.TxMaxRetries,
	}
}

// Logger builds a production zap logger at LOG_LEVEL.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
