package api

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/JvSe/deep-logs/internal/api/handlers"
	"github.com/JvSe/deep-logs/internal/api/middleware"
	"github.com/JvSe/deep-logs/internal/config"
	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/metrics"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Components are the long-lived pieces the router is built from.
// The caller owns the reconcile scheduler and must Stop it on shutdown.
type Components struct {
	DeviceKeys *services.DeviceKeyService
	DefaultKey *models.DeviceKey // nil once the default key was deleted by hand
	Sessions   *middleware.SessionManager
	Summaries  *services.SummaryService
	Reconciler *services.ReconcileScheduler
	Registry   *prometheus.Registry
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *Components, error) {
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	deviceKeys := services.NewDeviceKeyService(db)
	defaultKey, err := deviceKeys.EnsureDefault(context.Background(), filepath.Join(cfg.DataDir, services.LegacyDeviceKeyFile))
	if err != nil {
		return nil, nil, err
	}
	sessions := middleware.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ingestMetrics := metrics.NewIngestMetrics(registry)

	// Initialize services
	summaryService := services.NewSummaryService(db, ingestMetrics)
	logService := services.NewLogService(db, summaryService, ingestMetrics)
	userService := services.NewUserService(db)

	reconciler := services.NewReconcileScheduler(summaryService, cfg.ReconcileInterval)
	reconciler.Start()

	var limiter *middleware.ClientRateLimiter
	if cfg.IngestRateLimit > 0 {
		limiter = middleware.NewClientRateLimiter(cfg.IngestRateLimit, cfg.IngestBurst)
	}

	// Initialize handlers
	logHandler := handlers.NewLogHandler(logService)
	summaryHandler := handlers.NewSummaryHandler(summaryService)
	authHandler := handlers.NewAuthHandler(userService, sessions, cfg.SecureCookies)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		// Device ingestion (device key required, no session)
		api.POST("/logs",
			middleware.RateLimitMiddleware(limiter),
			middleware.DeviceKeyMiddleware(deviceKeys, ingestMetrics),
			logHandler.CreateLog,
		)

		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/logout", authHandler.Logout)
			auth.GET("/me", middleware.SessionMiddleware(sessions), authHandler.Me)
		}

		// Dashboard routes (session required)
		protected := api.Group("")
		protected.Use(middleware.SessionMiddleware(sessions))
		{
			protected.GET("/logs", logHandler.ListLogs)
			protected.GET("/logs/summary", summaryHandler.ListSummaries)
			protected.GET("/log-summary", summaryHandler.ListSummaries)
			protected.GET("/logs/:id", logHandler.GetLog)
			protected.POST("/logs/summary/rebuild",
				middleware.RequireRole(string(models.UserRoleAdmin)),
				summaryHandler.Rebuild,
			)
		}
	}

	return router, &Components{
		DeviceKeys: deviceKeys,
		DefaultKey: defaultKey,
		Sessions:   sessions,
		Summaries:  summaryService,
		Reconciler: reconciler,
		Registry:   registry,
	}, nil
}

// corsConfig allows credentialed requests from the listed origins only.
// "*" (or an empty list) allows any origin but without credentials, since
// browsers drop cookies on wildcard responses; a dashboard on another origin
// must then be listed explicitly to keep its session cookie.
func corsConfig(origins string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.APIKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	var allowed []string
	wildcard := false
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			wildcard = true
		case o != "":
			allowed = append(allowed, o)
		}
	}

	if wildcard || len(allowed) == 0 {
		if len(allowed) > 0 {
			log.Printf("[API] cors_origins mixes * with explicit origins, allowing any origin without credentials")
		}
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = allowed
	cfg.AllowCredentials = true
	return cfg
}
