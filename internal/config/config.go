package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultEnv             = "development"
	defaultLogLevel        = "info"
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultRedisDB         = 0
	defaultCacheTTLSeconds = 1

	defaultRecommendationsExchange = "trading.recommendations"
	defaultOverridesExchange       = "trading.overrides"
	defaultRabbitPrefetch          = 16

	defaultExchangeRESTURL   = "https://api.binance.com"
	defaultExchangeStreamURL = "wss://stream.binance.com:9443/ws"
	defaultRecvWindow        = 5 * time.Second
	defaultRequestTimeout    = 10 * time.Second
	defaultRequestsPerSecond = 10
	defaultRequestBurst      = 20

	defaultJournalBatchSize    = 50
	defaultJournalBatchTimeout = 2 * time.Second

	defaultShutdownTimeout = 10 * time.Second
)

// Config keeps the runtime configuration for the engine.
type Config struct {
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration
	HTTP            HTTPConfig
	Postgres        PostgresConfig
	Redis           RedisConfig
	Cache           CacheConfig
	RabbitMQ        RabbitMQConfig
	Exchange        ExchangeConfig
	Journal         JournalConfig
	Trading         Tunables
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RedisConfig stores Redis connection parameters. An empty Addr disables
// Redis; open orders are then tracked in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig stores HTTP response cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

// RabbitMQConfig stores broker settings. An empty URL disables publishing
// and the override consumer.
type RabbitMQConfig struct {
	URL                     string
	RecommendationsExchange string
	OverridesExchange       string
	Prefetch                int
}

// ExchangeConfig stores exchange API access.
type ExchangeConfig struct {
	RESTURL           string
	StreamURL         string
	APIKey            string
	APISecret         string
	RecvWindow        time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond int
	RequestBurst      int
}

// JournalConfig controls order journal batching.
type JournalConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
}

// Load builds Config from environment variables and the optional tunables
// file named by TRADING_PARAMS_FILE.
func Load() (*Config, error) {
	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	apiKey := os.Getenv("EXCHANGE_API_KEY")
	apiSecret := os.Getenv("EXCHANGE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	prefetch, err := getInt("RABBITMQ_PREFETCH", defaultRabbitPrefetch)
	if err != nil {
		return nil, fmt.Errorf("parse RABBITMQ_PREFETCH: %w", err)
	}

	recvWindow, err := getDuration("EXCHANGE_RECV_WINDOW", defaultRecvWindow)
	if err != nil {
		return nil, fmt.Errorf("parse EXCHANGE_RECV_WINDOW: %w", err)
	}
	requestTimeout, err := getDuration("EXCHANGE_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse EXCHANGE_REQUEST_TIMEOUT: %w", err)
	}
	rps, err := getInt("EXCHANGE_REQUESTS_PER_SECOND", defaultRequestsPerSecond)
	if err != nil {
		return nil, fmt.Errorf("parse EXCHANGE_REQUESTS_PER_SECOND: %w", err)
	}
	burst, err := getInt("EXCHANGE_REQUEST_BURST", defaultRequestBurst)
	if err != nil {
		return nil, fmt.Errorf("parse EXCHANGE_REQUEST_BURST: %w", err)
	}

	batchSize, err := getInt("JOURNAL_BATCH_SIZE", defaultJournalBatchSize)
	if err != nil {
		return nil, fmt.Errorf("parse JOURNAL_BATCH_SIZE: %w", err)
	}
	batchTimeout, err := getDuration("JOURNAL_BATCH_TIMEOUT", defaultJournalBatchTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse JOURNAL_BATCH_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
	}

	tunables := DefaultTunables()
	if path := os.Getenv("TRADING_PARAMS_FILE"); path != "" {
		tunables, err = LoadTunables(path)
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		Env:             getString("APP_ENV", defaultEnv),
		LogLevel:        getString("LOG_LEVEL", defaultLogLevel),
		ShutdownTimeout: shutdownTimeout,
		HTTP:            HTTPConfig{Host: host, Port: port},
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		RabbitMQ: RabbitMQConfig{
			URL:                     os.Getenv("RABBITMQ_URL"),
			RecommendationsExchange: getString("RABBITMQ_RECOMMENDATIONS_EXCHANGE", defaultRecommendationsExchange),
			OverridesExchange:       getString("RABBITMQ_OVERRIDES_EXCHANGE", defaultOverridesExchange),
			Prefetch:                prefetch,
		},
		Exchange: ExchangeConfig{
			RESTURL:           getString("EXCHANGE_REST_URL", defaultExchangeRESTURL),
			StreamURL:         getString("EXCHANGE_STREAM_URL", defaultExchangeStreamURL),
			APIKey:            apiKey,
			APISecret:         apiSecret,
			RecvWindow:        recvWindow,
			RequestTimeout:    requestTimeout,
			RequestsPerSecond: rps,
			RequestBurst:      burst,
		},
		Journal: JournalConfig{
			BatchSize:    batchSize,
			BatchTimeout: batchTimeout,
		},
		Trading: tunables,
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}
