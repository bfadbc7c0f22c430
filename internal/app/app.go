package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/breaker"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Version is reported in traces.
var Version = "dev"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	backends   *Backends
	catalog    *service.CatalogService
	relay      *service.Relay
	producer   *pkgkafka.Producer
	consumer   *pkgkafka.Consumer
	httpServer *http.Server
	tracing    func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeAll(context.Background())
		}
	}()

	a.tracing, err = tracing.Init(ctx, cfg.Tracing(Version))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	a.backends, err = OpenBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := a.backends.Index.ConfigureIndex(ctx); err != nil {
		// The relay and a later reindex recover once the index is back.
		logger.Warn("search index settings not applied", slog.String("error", err.Error()))
	}

	var events service.EventPublisher = event.Nop{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.catalog = NewCatalog(cfg, a.backends, events, logger)
	a.relay = service.NewRelay(a.backends.Outbox, a.catalog, RelayConfig(cfg), logger)

	if cfg.KafkaSyncConsumer {
		var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(time.Hour)
		if a.backends.Redis != nil {
			store = pkgkafka.NewRedisIdempotencyStore(a.backends.Redis, "storefront:events:", 24*time.Hour)
		}
		a.consumer = event.NewSyncConsumer(cfg.KafkaBrokers, event.NewSyncHandler(a.catalog, logger), store, logger)
		logger.Info("index sync consumer initialized", slog.String("group_id", event.SyncGroupID))
	}

	cartHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		breaker.DefaultConfig("cart-service"),
		logger,
	)
	cartClient := cart.NewClient(cartHTTP, cfg.CartServiceURL, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("store", a.backends.Products.Ping)
	healthHandler.RegisterCritical("search_index", a.backends.Index.Ping)
	if a.backends.Redis != nil {
		redisClient := a.backends.Redis
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if cfg.KafkaEnabled {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.RouterDeps{
		Catalog: a.catalog,
		Cart:    cartClient,
		Outbox:  a.relay,
		Reindex: ReindexOptions(cfg),
		Health:  healthHandler,
		CORS:    cors,
		Service: config.ServiceName,
		Logger:  logger,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// Run starts the HTTP server, the outbox relay and the sync consumer,
// blocking until the context is canceled or one of them fails. Background
// workers are stopped before the backends are closed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	go func() {
		if err := a.relay.Run(ctx); err != nil {
			errCh <- fmt.Errorf("outbox relay: %w", err)
		}
	}()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	if a.cfg.ReindexOnStart {
		go a.reindexOnStart(ctx)
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		cancel()
		_ = a.Shutdown()
		return err
	}

	cancel()
	return a.Shutdown()
}

func (a *App) reindexOnStart(ctx context.Context) {
	res, err := a.catalog.Reindex(ctx, ReindexOptions(a.cfg))
	if err != nil {
		a.logger.Error("startup reindex failed", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("startup reindex completed",
		slog.Int("documents", res.Documents),
		slog.Int("batches", res.Batches),
		slog.Duration("duration", res.Duration),
	)
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if err := a.closeAll(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.consumer = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.backends != nil {
		if err := a.backends.Close(ctx); err != nil {
			a.logger.Error("backend close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.tracing != nil {
		if err := a.tracing(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracing = nil
	}
	return errors.Join(errs...)
}
