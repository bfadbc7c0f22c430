package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/engine"
	enginebreaker "github.com/utafrali/storefront/internal/engine/breaker"
	esengine "github.com/utafrali/storefront/internal/engine/elasticsearch"
	"github.com/utafrali/storefront/internal/engine/meilisearch"
	enginemem "github.com/utafrali/storefront/internal/engine/memory"
	"github.com/utafrali/storefront/internal/lock"
	"github.com/utafrali/storefront/internal/repository"
	repomem "github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/internal/repository/mongodb"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/breaker"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Backends holds the connected stores shared by the server and the CLI.
type Backends struct {
	Products repository.ProductRepository
	Outbox   repository.OutboxRepository
	Index    engine.SearchEngine
	Locker   lock.Locker
	// Redis is nil unless a component needs it.
	Redis *redis.Client

	closers []func(context.Context) error
}

// OpenBackends connects the primary store, the search index and the lock
// backend selected by cfg. On error everything opened so far is closed.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			_ = b.Close(context.Background())
		}
	}()

	if err := b.openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := b.openIndex(cfg, logger); err != nil {
		return nil, err
	}
	if err := b.openLocker(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backends) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		b.onClose(func(context.Context) error {
			pool.Close()
			return nil
		})
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		database.RegisterPoolMetrics(pool, config.ServiceName)
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

		b.Products = postgres.NewProductRepository(pool)
		b.Outbox = postgres.NewOutboxRepository(pool)
		logger.Info("postgres primary store ready", slog.String("database", cfg.PostgresDB))

	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo(), logger)
		if err != nil {
			return fmt.Errorf("connect to mongo: %w", err)
		}
		b.onClose(client.Disconnect)
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

		db := client.Database(cfg.MongoDatabase)
		products := mongodb.NewProductRepository(db)
		if err := products.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure product indexes: %w", err)
		}
		outbox := mongodb.NewOutboxRepository(db)
		if err := outbox.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure outbox indexes: %w", err)
		}
		b.Products = products
		b.Outbox = outbox
		logger.Info("mongo primary store ready", slog.String("database", cfg.MongoDatabase))

	default:
		b.Products = repomem.NewProductRepository()
		b.Outbox = repomem.NewOutboxRepository()
		logger.Warn("in-memory primary store in use; data is lost on restart")
	}
	return nil
}

func (b *Backends) openIndex(cfg *config.Config, logger *slog.Logger) error {
	var index engine.SearchEngine
	switch cfg.SearchEngine {
	case config.EngineMeilisearch:
		client := httpclient.New(httpclient.DefaultConfig())
		index = meilisearch.New(client, meilisearch.Config{
			URL:    cfg.MeiliURL,
			APIKey: cfg.MeiliAPIKey,
			Index:  cfg.SearchIndex,
		}, logger)
		logger.Info("meilisearch index configured",
			slog.String("url", cfg.MeiliURL),
			slog.String("index", cfg.SearchIndex),
		)

	case config.EngineElasticsearch:
		es, err := esengine.New(cfg.ElasticsearchURL, cfg.SearchIndex, logger)
		if err != nil {
			return fmt.Errorf("init elasticsearch engine: %w", err)
		}
		index = es
		logger.Info("elasticsearch index configured",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.SearchIndex),
		)

	default:
		index = enginemem.New()
		logger.Info("in-memory search index initialized")
	}

	if cfg.IndexBreakerEnabled {
		index = enginebreaker.New(index, breaker.DefaultConfig("search-index"), logger)
	}
	b.Index = index
	return nil
}

func (b *Backends) openLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.UsesRedis() {
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		b.Redis = client
		b.onClose(func(context.Context) error { return client.Close() })
	}

	switch cfg.LockBackend {
	case lock.BackendRedis:
		b.Locker = lock.NewRedis(b.Redis, lock.RedisConfig{TTL: cfg.LockTTL}, logger)
	case lock.BackendNone:
		b.Locker = lock.None{}
		logger.Warn("per-product locking disabled; concurrent writes may leave the index stale")
	default:
		b.Locker = lock.NewMemory()
	}
	return nil
}

func (b *Backends) onClose(fn func(context.Context) error) {
	b.closers = append(b.closers, fn)
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// NewCatalog builds the catalog service over b. The outbox is left out in
// strict mode so an index failure fails the request.
func NewCatalog(cfg *config.Config, b *Backends, events service.EventPublisher, logger *slog.Logger) *service.CatalogService {
	opts := []service.Option{
		service.WithLocker(b.Locker),
		service.WithStrictSync(cfg.SyncStrict),
	}
	if !cfg.SyncStrict {
		opts = append(opts, service.WithOutbox(b.Outbox))
	}
	if events != nil {
		opts = append(opts, service.WithEvents(events))
	}
	return service.NewCatalogService(b.Products, b.Index, logger, opts...)
}

// RelayConfig maps the outbox settings.
func RelayConfig(cfg *config.Config) service.RelayConfig {
	rc := service.DefaultRelayConfig()
	rc.PollInterval = cfg.OutboxPollInterval
	rc.BatchSize = cfg.OutboxBatchSize
	rc.MaxAttempts = cfg.OutboxMaxAttempts
	rc.Rate = cfg.OutboxRate
	return rc
}

// ReindexOptions maps the reindex settings.
func ReindexOptions(cfg *config.Config) service.ReindexOptions {
	return service.ReindexOptions{
		BatchSize:   cfg.ReindexBatchSize,
		Concurrency: cfg.ReindexConcurrency,
	}
}
