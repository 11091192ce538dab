package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/application/usecase"
	"github.com/mia-platform/crud-service-sub002/internal/config"
	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/cache"
	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/messaging/kafka"
	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/persistence/mongodb"
	httpHandler "github.com/mia-platform/crud-service-sub002/internal/interfaces/http/handler"
	"github.com/mia-platform/crud-service-sub002/internal/interfaces/http/router"
	"github.com/mia-platform/crud-service-sub002/internal/join"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/metrics"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/tracing"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/vault"
)

// @title CRUD Service API
// @version 1.0
// @description Declarative CRUD service exposing REST endpoints over MongoDB collections, with query resolution, views, joins, streaming import/export, and field-level encryption
// @termsOfService http://swagger.io/terms/

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /v1

func main() {
	// ============================================
	// 1. Configuration
	// ============================================
	cfg, err := config.LoadConfig("./configs", "config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// ============================================
	// 2. Logger Initialization
	// ============================================
	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.Logging.Level,
		Environment: cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "starting crud service",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("go_version", runtime.Version()),
	)

	// ============================================
	// 3. Metrics Initialization
	// ============================================
	if cfg.Observability.Metrics.Enabled {
		metrics.Init(cfg.Observability.Metrics.Namespace)
		logger.Info(ctx, "metrics initialized")
	}

	// ============================================
	// 4. Tracing Initialization
	// ============================================
	if cfg.Observability.Tracing.Enabled {
		tracingShutdown, err := tracing.Init(&tracing.Config{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			JaegerEndpoint: cfg.Observability.Tracing.JaegerEndpoint,
			Enabled:        true,
		})
		if err != nil {
			logger.Fatal(ctx, "failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracingShutdown(shutdownCtx); err != nil {
				logger.Error(ctx, "failed to shutdown tracing", zap.Error(err))
			}
		}()
		logger.Info(ctx, "tracing initialized", zap.String("jaeger_endpoint", cfg.Observability.Tracing.JaegerEndpoint))
	}

	// ============================================
	// 5. Collection Definitions
	// ============================================
	registry, err := definition.Load(ctx, cfg.Crud.DefinitionsFolder)
	if err != nil {
		logger.Fatal(ctx, "failed to load collection definitions", zap.Error(err))
	}
	logger.Info(ctx, "collection definitions loaded",
		zap.String("folder", cfg.Crud.DefinitionsFolder),
		zap.Int("endpoints", len(registry.Endpoints())),
	)

	// ============================================
	// 6. MongoDB Repository
	// ============================================
	repo, err := mongodb.NewRepository(ctx, &mongodb.Config{
		URI:            cfg.MongoDB.URI,
		Database:       cfg.MongoDB.Database,
		MaxPoolSize:    cfg.MongoDB.MaxPoolSize,
		MinPoolSize:    cfg.MongoDB.MinPoolSize,
		MaxConnecting:  cfg.MongoDB.MaxConnecting,
		ConnectTimeout: cfg.MongoDB.ConnectTimeout,
		Timeout:        cfg.MongoDB.Timeout,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to initialize mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			logger.Error(ctx, "failed to close mongodb connection", zap.Error(err))
		}
	}()
	logger.Info(ctx, "mongodb repository initialized", zap.String("database", cfg.MongoDB.Database))

	// ============================================
	// 7. Vault Client Initialization (Optional)
	// ============================================
	var vaultClient *vault.Client
	if cfg.Vault.Enabled {
		vaultClient, err = vault.NewClient(&vault.Config{
			Address:        cfg.Vault.Address,
			Token:          cfg.Vault.Token,
			AuthMethod:     cfg.Vault.AuthMethod,
			RoleID:         cfg.Vault.RoleID,
			SecretID:       cfg.Vault.SecretID,
			Namespace:      cfg.Vault.Namespace,
			TLSEnabled:     cfg.Vault.TLS.Enabled,
			TLSSkipVerify:  cfg.Vault.TLS.SkipVerify,
			CACert:         cfg.Vault.TLS.CACert,
			TransitPath:    cfg.Vault.TransitPath,
			DefaultKeyName: cfg.Vault.DefaultKeyName,
		})
		if err != nil {
			logger.Fatal(ctx, "failed to initialize vault client", zap.Error(err))
		}

		if err := vaultClient.HealthCheck(ctx); err != nil {
			logger.Warn(ctx, "vault health check failed", zap.Error(err))
		} else {
			logger.Info(ctx, "vault client initialized")
		}
	}
	cipher := vault.NewFieldCipher(vaultClient)

	// ============================================
	// 8. Redis Rate Limiter (Optional)
	// ============================================
	var rateLimiter *cache.RateLimiter
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewClient(ctx, &cache.Config{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "failed to initialize redis client", zap.Error(err))
		}
		defer redisClient.Close()

		rateLimiter = cache.NewRateLimiter(redisClient, cfg.App.Name)
		logger.Info(ctx, "redis rate limiter initialized", zap.String("address", cfg.Redis.Address))
	}

	// ============================================
	// 9. Kafka Producer Initialization (Optional)
	// ============================================
	var publisher *kafka.ChangePublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(&kafka.ProducerConfig{
			Brokers:         cfg.Kafka.Brokers,
			ClientID:        cfg.Kafka.ClientID,
			MaxMessageBytes: cfg.Kafka.Producer.MaxMessageBytes,
			RequiredAcks:    sarama.RequiredAcks(cfg.Kafka.Producer.RequiredAcks),
			Compression:     parseCompression(cfg.Kafka.Producer.Compression),
			MaxRetries:      cfg.Kafka.Producer.MaxRetries,
			RetryBackoff:    cfg.Kafka.Producer.RetryBackoff,
		})
		if err != nil {
			logger.Warn(ctx, "failed to initialize kafka producer", zap.Error(err))
		} else {
			defer producer.Close()
			publisher = kafka.NewChangePublisher(producer, cfg.Kafka.Topic)
			logger.Info(ctx, "kafka producer initialized",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic),
			)
		}
	}

	// ============================================
	// 10. UseCase Layer Initialization
	// ============================================
	crudUC, err := usecase.NewCrudUseCase(registry, repo, cipher, publisher, cfg.Crud.ImportBatchSize)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize crud use case", zap.Error(err))
	}

	if err := crudUC.EnsureIndexes(ctx); err != nil {
		logger.Fatal(ctx, "failed to ensure collection indexes", zap.Error(err))
	}
	logger.Info(ctx, "crud use case initialized, indexes ensured")

	planner, err := join.NewPlanner(repo.Database(), registry)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize join planner", zap.Error(err))
	}

	// ============================================
	// 11. HTTP Handlers and Router
	// ============================================
	crudHandler := httpHandler.NewCrudHandler(crudUC, cfg.Crud.DefaultLimit, cfg.Crud.MaxLimit)
	joinHandler := httpHandler.NewJoinHandler(planner)
	healthHandler := httpHandler.NewHealthHandler(repo, redisClient, vaultClient, cfg.App.Version)

	r := router.SetupRouter(crudHandler, joinHandler, healthHandler, router.Options{
		Environment:     cfg.App.Environment,
		EnableTracing:   cfg.Observability.Tracing.Enabled,
		EnableMetrics:   cfg.Observability.Metrics.Enabled,
		RateLimiter:     rateLimiter,
		RateLimit:       cfg.Crud.RateLimit,
		RateLimitWindow: cfg.Crud.RateLimitWindow,
	})
	logger.Info(ctx, "router initialized")

	// ============================================
	// 12. HTTP Server
	// ============================================
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.HTTP.ReadTimeout,
		WriteTimeout:   cfg.Server.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
		IdleTimeout:    120 * time.Second,
	}

	go func() {
		logger.Info(ctx, "starting HTTP server",
			zap.Int("port", cfg.Server.HTTP.Port),
			zap.String("environment", cfg.App.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "failed to start HTTP server", zap.Error(err))
		}
	}()

	// ============================================
	// 13. Graceful Shutdown
	// ============================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server forced to shutdown", zap.Error(err))
	}

	logger.Info(ctx, "server exited")
}

func parseCompression(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	case "none":
		return sarama.CompressionNone
	default:
		return sarama.CompressionSnappy
	}
}
