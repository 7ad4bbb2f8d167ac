package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/crypticpy/RTASS-sub003/handler"
	"github.com/crypticpy/RTASS-sub003/middleware"
	"github.com/crypticpy/RTASS-sub003/pkg/logger"
	"github.com/crypticpy/RTASS-sub003/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize services
	store := service.NewStore(&cfg.Store)
	cache := service.NewTTLCache()
	analyzer := service.NewLLMAnalyzer(&cfg.Analyzer)

	var archive *service.ReportArchive
	if cfg.Archive.Enabled {
		archive, err = service.NewReportArchive(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize report archive", "error", err)
			os.Exit(1)
		}
		if err := archive.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
	}

	orchestrator := service.NewOrchestrator(store, analyzer, analyzer, cfg.Analyzer.Model)
	compliance := service.NewComplianceService(store, cache, orchestrator, archive, &cfg.Cache, &cfg.Audit)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	auditHandler := handler.NewAuditHandler(compliance, store, service.NewReportService())
	templateHandler := handler.NewTemplateHandler(store)
	transcriptHandler := handler.NewTranscriptHandler(store)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request/correlation IDs for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/templates", templateHandler.Create)
		protected.GET("/templates", templateHandler.List)
		protected.GET("/templates/:id", templateHandler.Get)

		protected.POST("/transcripts", transcriptHandler.Create)
		protected.GET("/transcripts/:id", transcriptHandler.Get)

		protected.POST("/audits", auditHandler.Create)
		protected.GET("/audits", auditHandler.List)
		protected.GET("/audits/:id", auditHandler.Get)
		protected.GET("/audits/:id/report.pdf", auditHandler.ReportPDF)
	}

	// Create server. Write timeout is generous because streaming audits hold
	// the connection open for the whole run.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Request-ID", "X-Correlation-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
