package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/meridianshop/reviews-service/pkg/database"
	"github.com/meridianshop/reviews-service/pkg/health"
	pkgkafka "github.com/meridianshop/reviews-service/pkg/kafka"
	"github.com/meridianshop/reviews-service/pkg/tracing"

	"github.com/meridianshop/reviews-service/internal/auth"
	"github.com/meridianshop/reviews-service/internal/config"
	"github.com/meridianshop/reviews-service/internal/event"
	handler "github.com/meridianshop/reviews-service/internal/handler/http"
	"github.com/meridianshop/reviews-service/internal/migrations"
	"github.com/meridianshop/reviews-service/internal/repository/postgres"
	"github.com/meridianshop/reviews-service/internal/service"
)

const serviceName = "reviews-service"

// App wires together all dependencies and runs the reviews service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	redisClient     *redis.Client
	producer        *pkgkafka.Producer
	consumers       []*pkgkafka.Consumer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tracing first so everything below records spans.
	tracingShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.TracingEndpoint,
		SampleRate:  cfg.TracingSampleRate,
		Enabled:     cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pgCfg.MaxConns = 25
	pgCfg.MinConns = 5
	pgCfg.MaxConnLifetime = time.Hour
	pgCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := database.NewPostgresPool(ctx, pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	prometheus.MustRegister(database.NewPoolStatsCollector(pool, serviceName))

	// Redis-backed consumer idempotency, with in-memory fallback.
	var redisClient *redis.Client
	var idemStore pkgkafka.IdempotencyStore
	if cfg.RedisEnabled() {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		idemStore = pkgkafka.NewRedisIdempotencyStore(redisClient, serviceName, cfg.IdempotencyTTL)
		logger.Info("redis idempotency store initialized", slog.String("addr", cfg.Redis().Addr()))
	} else {
		idemStore = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
		logger.Info("using in-memory idempotency store")
	}

	// Kafka producer and event plumbing.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	aggregator := postgres.NewRatingAggregator()
	reviewStore := postgres.NewReviewStore(pool, aggregator)
	productStore := postgres.NewProductStore(pool)
	userStore := postgres.NewUserStore(pool)

	eventProducer := event.NewProducer(producer, logger)
	reviewService := service.NewReviewService(reviewStore, productStore, eventProducer, logger)

	// Replica consumers: one per inbound topic, sharing the dedup store.
	replicaConsumer := event.NewConsumer(productStore, userStore, logger)
	handlerFn := pkgkafka.IdempotentHandler(idemStore, replicaConsumer.Handle, logger)

	inboundTopics := []string{
		event.TopicProductCreated,
		event.TopicProductUpdated,
		event.TopicProductDeleted,
		event.TopicUserRegistered,
		event.TopicUserUpdated,
	}
	consumers := make([]*pkgkafka.Consumer, 0, len(inboundTopics))
	for _, topic := range inboundTopics {
		consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
			Topic:   topic,
		}, handlerFn, logger))
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	router := handler.NewRouter(handler.RouterConfig{
		ReviewService:  reviewService,
		HealthHandler:  healthHandler,
		TokenValidator: auth.NewValidator(cfg.JWTSecret),
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		ServiceName:    serviceName,
		CORS:           cfg.CORS(),
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		redisClient:     redisClient,
		producer:        producer,
		consumers:       consumers,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the HTTP server and the replica consumers, blocking until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, cancelConsumers := context.WithCancel(ctx)
	defer cancelConsumers()

	for _, c := range a.consumers {
		go func(c *pkgkafka.Consumer) {
			if err := c.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}(c)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.pool.Close()

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
