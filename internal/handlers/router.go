package handlers

import (
	"context"
	"net/http"
	"time"

	"hubon-pickup/internal/config"
	"hubon-pickup/internal/handlers/admin"
	"hubon-pickup/internal/handlers/storefront"
	"hubon-pickup/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function such as (*sql.DB).PingContext to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type RouterDeps struct {
	Storefront     *storefront.Handler
	Accounts       *admin.AccountHandler
	Shipping       *admin.ShippingHandler
	Transports     *admin.TransportHandler
	Guides         *admin.GuideHandler
	RateLimiter    middleware.RateLimiter
	Metrics        middleware.MetricsRecorder
	LimitMetrics   middleware.RateLimitRecorder
	Gatherer       prometheus.Gatherer
	Checks         map[string]Pinger
	CORS           config.CORSConfig
	TrustedProxies []string
	Logger         *zap.Logger
}

// NewRouter mounts the public storefront API under /api and the embedded
// admin under /app.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Error("invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.LoggingMiddleware(deps.Logger),
		middleware.MetricsMiddleware(deps.Metrics),
	)

	router.GET("/healthz", healthHandler(deps.Checks, deps.Logger))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api",
		middleware.NewCORSMiddleware(deps.CORS, deps.Logger),
		middleware.RateLimitMiddleware(deps.RateLimiter, deps.LimitMetrics, deps.Logger),
	)
	{
		api.GET("/settings", deps.Storefront.HandleSettings)
		api.GET("/hubs", deps.Storefront.HandleHubs)
		api.GET("/availability", deps.Storefront.HandleAvailability)
		// Preflights need a matching route for the group middleware to run.
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	app := router.Group("/app", middleware.SessionMiddleware(deps.Logger))
	{
		app.POST("/hubon", deps.Accounts.HandleLink)
		app.GET("/settings", deps.Accounts.HandleSettings)
		app.POST("/settings", deps.Shipping.HandleSave)

		app.GET("/paid", deps.Transports.HandleListPaid)
		app.GET("/failed", deps.Transports.HandleListFailed)
		app.GET("/failed/:id", deps.Transports.HandleFailedDetail)
		app.POST("/failed/:id", deps.Transports.HandleRetryFailed)
		app.POST("/orders/failed", deps.Transports.HandleRecordFailure)

		app.GET("/guides", deps.Guides.HandleGet)
		app.PUT("/guides", deps.Guides.HandleUpdate)
	}

	return router
}

func healthHandler(checks map[string]Pinger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "up"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
