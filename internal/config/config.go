package config

import (
	"fmt"
	"time"

	"github.com/utafrali/storefront/internal/lock"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Primary store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Search engine backends.
const (
	EngineMeilisearch   = "meilisearch"
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// ServiceName is reported in logs, traces and metrics.
const ServiceName = "storefront"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Primary store selection (postgres, mongo or memory)
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"ecommerce_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// MongoDB
	MongoURI         string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase    string `env:"MONGO_DATABASE" envDefault:"ecommerce_db"`
	MongoMaxPoolSize uint64 `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`

	// Search engine selection (meilisearch, elasticsearch or memory)
	SearchEngine        string `env:"SEARCH_ENGINE" envDefault:"meilisearch"`
	SearchIndex         string `env:"SEARCH_INDEX" envDefault:"products"`
	MeiliURL            string `env:"MEILI_URL" envDefault:"http://localhost:7700"`
	MeiliAPIKey         string `env:"MEILI_API_KEY"`
	ElasticsearchURL    string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	IndexBreakerEnabled bool   `env:"INDEX_BREAKER_ENABLED" envDefault:"true"`

	// Synchronization
	SyncStrict  bool          `env:"SYNC_STRICT" envDefault:"false"`
	LockBackend string        `env:"LOCK_BACKEND" envDefault:"memory"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"10s"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaSyncConsumer bool     `env:"KAFKA_SYNC_CONSUMER" envDefault:"false"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
	OutboxRate         float64       `env:"OUTBOX_RATE" envDefault:"50"`

	// Reindex
	ReindexOnStart     bool `env:"REINDEX_ON_START" envDefault:"false"`
	ReindexConcurrency int  `env:"REINDEX_CONCURRENCY" envDefault:"4"`
	ReindexBatchSize   int  `env:"REINDEX_BATCH_SIZE" envDefault:"500"`

	// Cart service
	CartServiceURL string `env:"CART_SERVICE_URL" envDefault:"http://localhost:8081"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. pkgconfig.Load calls it after
// parsing.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StoreBackend {
	case StorePostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be postgres, mongo or memory, got %q", c.StoreBackend)
	}

	switch c.SearchEngine {
	case EngineMeilisearch:
		if c.MeiliURL == "" {
			return fmt.Errorf("MEILI_URL is required")
		}
	case EngineElasticsearch:
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("SEARCH_ENGINE must be meilisearch, elasticsearch or memory, got %q", c.SearchEngine)
	}
	if c.SearchIndex == "" {
		return fmt.Errorf("SEARCH_INDEX is required")
	}

	switch c.LockBackend {
	case lock.BackendMemory, lock.BackendNone:
	case lock.BackendRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis lock backend")
		}
		if c.LockTTL <= 0 {
			return fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL)
		}
	default:
		return fmt.Errorf("LOCK_BACKEND must be memory, redis or none, got %q", c.LockBackend)
	}

	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if c.KafkaSyncConsumer && !c.KafkaEnabled {
		return fmt.Errorf("KAFKA_SYNC_CONSUMER requires KAFKA_ENABLED")
	}

	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.OutboxPollInterval)
	}
	if c.OutboxBatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1, got %d", c.OutboxBatchSize)
	}
	if c.OutboxMaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be at least 1, got %d", c.OutboxMaxAttempts)
	}
	if c.OutboxRate < 0 {
		return fmt.Errorf("OUTBOX_RATE must not be negative, got %f", c.OutboxRate)
	}
	if c.ReindexConcurrency < 1 {
		return fmt.Errorf("REINDEX_CONCURRENCY must be at least 1, got %d", c.ReindexConcurrency)
	}
	if c.ReindexBatchSize < 1 {
		return fmt.Errorf("REINDEX_BATCH_SIZE must be at least 1, got %d", c.ReindexBatchSize)
	}

	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection settings for the product database.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Mongo returns the MongoDB connection settings.
func (c *Config) Mongo() database.MongoConfig {
	return database.MongoConfig{
		URI:            c.MongoURI,
		Database:       c.MongoDatabase,
		MaxPoolSize:    c.MongoMaxPoolSize,
		ConnectTimeout: 10 * time.Second,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		PoolSize: 20,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(version string) tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Insecure:       true,
		Enabled:        c.OTELEnabled,
	}
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.LockBackend == lock.BackendRedis
}
