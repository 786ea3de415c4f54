package middleware

import (
	"time"

	"hubon-pickup/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewCORSMiddleware opens the storefront endpoints to theme scripts. An empty
// origin list or "*" allows any origin.
func NewCORSMiddleware(cfg config.CORSConfig, logger *zap.Logger) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if allowsAny(cfg.AllowOrigins) {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	logger.Info("CORS middleware initialized", zap.Strings("allow_origins", cfg.AllowOrigins))
	return cors.New(corsCfg)
}

func allowsAny(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
