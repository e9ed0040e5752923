package api

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/auth"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Empty means the client IP is the peer address.
	TrustedProxies []string
	// JWT enables bearer auth on /api routes when set.
	JWT *auth.JWTManager
}

// NewRouter sets up the API router
func NewRouter(handler *Handler, opts RouterOptions, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	httpLogger := logger.With("component", "http")

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		httpLogger.Error("invalid trusted proxies, trusting none", "proxies", opts.TrustedProxies, "err", err)
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(httpLogger))
	router.Use(RecoveryMiddleware(httpLogger))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	// Public routes
	router.GET("/", handler.HealthCheck)
	router.GET("/api/health", handler.HealthCheck)

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst))
	if opts.JWT != nil {
		api.Use(AuthMiddleware(opts.JWT, httpLogger))
	} else {
		httpLogger.Warn("JWT_SECRET not set, /api routes are unauthenticated")
	}
	{
		api.POST("/assistant", handler.Assistant)
		api.POST("/ipc/search", handler.IPCSearch)
		api.GET("/ipc/sections/:id", handler.Section)
		api.POST("/predict", handler.Predict)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
