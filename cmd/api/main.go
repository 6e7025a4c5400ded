package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/handlers"
	"github.com/gocomet/ride-pooling/internal/api/middleware"
	"github.com/gocomet/ride-pooling/internal/api/routes"
	"github.com/gocomet/ride-pooling/internal/config"
	"github.com/gocomet/ride-pooling/internal/repository/memory"
	"github.com/gocomet/ride-pooling/internal/repository/postgres"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/gocomet/ride-pooling/pkg/cache"
	"github.com/gocomet/ride-pooling/pkg/database"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/gocomet/ride-pooling/pkg/monitoring"
	"github.com/gocomet/ride-pooling/pkg/notice"
	"github.com/gocomet/ride-pooling/pkg/websocket"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting GoComet Ride-Pooling Application",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("store", cfg.Store.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully",
			logger.String("app_name", cfg.NewRelic.AppName),
			logger.Bool("enabled", true))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis. It backs idempotency and the place cache.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedisClient(cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis successfully")
	}

	// Initialize the lifecycle store
	var (
		store  lifecycle.Store
		places lifecycle.Places
	)
	switch cfg.Store.Driver {
	case "postgres":
		postgresDB, err := database.NewPostgresDB(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.Name,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConnections,
			MaxIdle:     cfg.Database.MaxIdleConns,
			MaxLifetime: cfg.Database.MaxLifetime,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer postgresDB.Close()
		appLogger.Info("Connected to PostgreSQL successfully")

		pgStore := postgres.NewStore(postgresDB, appLogger)
		if cfg.Store.Migrate {
			if err := pgStore.Migrate(ctx); err != nil {
				appLogger.Fatal("Failed to migrate schema", logger.Err(err))
			}
		}
		store = pgStore
		places = postgres.NewPlaces(postgresDB, redisClient, cfg.Cache.TTLPlaces, appLogger)

		go reportPoolStats(ctx, nrApp, func() {
			nrApp.RecordDatabasePoolStats(database.GetPoolStats(postgresDB))
			if redisClient != nil {
				nrApp.RecordRedisPoolStats(cache.GetClientStats(redisClient))
			}
		})
	default:
		appLogger.Warn("Using in-memory store, state is lost on restart")
		store = memory.NewStore()
	}

	manager := lifecycle.NewManager(store, places, appLogger)

	// Optional collaborators
	var idem *cache.Idempotency
	if cfg.Features.EnableIdempotency && redisClient != nil {
		idem = cache.NewIdempotency(redisClient, cfg.Cache.TTLIdempotency)
	}

	var notices handlers.Notifier
	if cfg.Features.EnableNotices {
		publisher, err := notice.Dial(ctx, notice.Config{
			Host:       cfg.RabbitMQ.Host,
			Port:       cfg.RabbitMQ.Port,
			User:       cfg.RabbitMQ.User,
			Password:   cfg.RabbitMQ.Password,
			VHost:      cfg.RabbitMQ.VHost,
			Exchange:   cfg.RabbitMQ.Exchange,
			MaxRetries: cfg.RabbitMQ.MaxRetries,
		}, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to RabbitMQ", logger.Err(err))
		}
		defer publisher.Close()
		notices = publisher
	}

	var wsHub *websocket.Hub
	if cfg.Features.EnableRealTimeUpdates {
		wsHub = websocket.NewHub(appLogger)
		go wsHub.Run(ctx)
	}

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(manager, idem, wsHub, notices, nrApp, appLogger,
		cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Setup all routes
	var nrApplication *newrelic.Application
	if nrApp != nil && nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	auth := middleware.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)
	routes.SetupRoutes(router, h, auth, nrApplication)

	appLogger.Info("Routes configured successfully")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}

// reportPoolStats pushes connection pool gauges to New Relic every minute
func reportPoolStats(ctx context.Context, nrApp *monitoring.NewRelicApp, report func()) {
	if !nrApp.IsEnabled() {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}
