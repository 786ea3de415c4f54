package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hubon-pickup/internal/clients/carrier"
	redisclient "hubon-pickup/internal/clients/redis"
	"hubon-pickup/internal/clients/shopify"
	"hubon-pickup/internal/config"
	"hubon-pickup/internal/handlers"
	"hubon-pickup/internal/handlers/admin"
	"hubon-pickup/internal/handlers/storefront"
	"hubon-pickup/internal/repository"
	"hubon-pickup/internal/repository/guide"
	"hubon-pickup/internal/repository/merchant"
	"hubon-pickup/internal/repository/order"
	"hubon-pickup/internal/repository/session"
	"hubon-pickup/internal/services/account"
	"hubon-pickup/internal/services/availability"
	"hubon-pickup/internal/services/cache"
	"hubon-pickup/internal/services/circuitbreaker"
	"hubon-pickup/internal/services/idempotency"
	"hubon-pickup/internal/services/metrics"
	"hubon-pickup/internal/services/ratelimit"
	"hubon-pickup/internal/services/settings"
	"hubon-pickup/internal/services/shipping"
	"hubon-pickup/internal/services/signer"
	"hubon-pickup/internal/services/tracing"
	"hubon-pickup/internal/services/transport"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	location, err := cfg.Calendar.Location()
	if err != nil {
		logger.Fatal("Invalid calendar time zone", zap.String("time_zone", cfg.Calendar.TimeZone), zap.Error(err))
	}

	// Postgres
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal("Failed to open postgres", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxConnections)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.Postgres.ConnectionMaxLifetime)

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("Failed to prepare schema", zap.Error(err))
	}

	// Redis
	rdb, err := redisclient.NewClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Error closing redis connection", zap.Error(err))
		}
	}()

	// Observability
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsService := metrics.NewService(registry)
	tracer := tracing.NewService(cfg.Tracing.ServiceName, cfg.Tracing.Enabled)

	// Carrier
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:                "carrier",
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		SuccessThreshold:    cfg.Breaker.SuccessThreshold,
		Timeout:             cfg.Breaker.Timeout,
		MaxRequestsHalfOpen: cfg.Breaker.MaxRequestsHalfOpen,
		IsFailure:           carrier.IsBreakerFailure,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metricsService.SetCircuitBreakerState(name, int(to))
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	carrierClient := carrier.NewClient(cfg.Carrier, signer.NewHMACSigner(), breaker, metricsService, tracer, logger)
	shopifyClient := shopify.NewClient(cfg.Shopify, metricsService, tracer, logger)

	// Repositories
	sessions := session.NewRepository(db, logger)
	merchants := merchant.NewRepository(db, logger)
	orders := order.NewRepository(db, logger)
	guides := guide.NewRepository(db, logger)

	// Services
	customerCache := cache.NewService(rdb, "customer", cfg.Redis.KeyPrefix, cfg.Cache.CustomerTTL, metricsService, logger)
	hubCache := cache.NewService(rdb, "hub", cfg.Redis.KeyPrefix, cfg.Cache.HubSettingsTTL, metricsService, logger)
	calculator := availability.NewCalculator(availability.ClockFunc(time.Now), location)

	accounts := account.NewService(merchants, carrierClient, customerCache, logger)
	settingsService := settings.NewService(sessions, accounts, carrierClient, hubCache, calculator, metricsService, tracer, logger)
	shippingService := shipping.NewService(accounts, sessions, merchants, shopifyClient, shipping.Config{
		ProductName: cfg.Shopify.ProductName,
		MediaURL:    cfg.Shopify.MediaURL,
		ClientID:    cfg.Carrier.ClientID,
	}, logger)
	transports := transport.NewService(
		accounts,
		carrierClient,
		orders,
		idempotency.NewService(rdb, cfg.Redis.KeyPrefix, cfg.Cache.RetryLockTTL, logger),
		redisclient.NewEventPublisher(rdb, logger),
		cfg.Streams.TransportEvents,
		metricsService,
		logger,
	)

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		Storefront:   storefront.NewHandler(settingsService, logger),
		Accounts:     admin.NewAccountHandler(accounts, logger),
		Shipping:     admin.NewShippingHandler(shippingService, logger),
		Transports:   admin.NewTransportHandler(transports, logger),
		Guides:       admin.NewGuideHandler(guides, logger),
		RateLimiter:  ratelimit.NewService(rdb, cfg.Redis.KeyPrefix, cfg.RateLimit, logger),
		Metrics:      metricsService,
		LimitMetrics: metricsService,
		Gatherer:     registry,
		Checks: map[string]handlers.Pinger{
			"postgres": handlers.PingerFunc(db.PingContext),
			"redis":    rdb,
		},
		CORS:           cfg.CORS,
		TrustedProxies: cfg.Server.TrustedProxies,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HubOn pickup service starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build()
}
