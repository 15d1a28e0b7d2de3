package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-autoreply-platform/internal/app"
	"social-autoreply-platform/internal/config"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/queue"
	"social-autoreply-platform/internal/telemetry"
	"social-autoreply-platform/middleware"
	"social-autoreply-platform/routes"
	"social-autoreply-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const serviceName = "social-autoreply-platform"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.TracingSampleRatio)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, metrics)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := app.ShutdownContext()
		defer cancel()
		a.Close(ctx)
	}()

	// Background dispatch
	inline := services.NewInlineDispatcher(a.AutoReply)
	var dispatcher services.Dispatcher = inline
	if cfg.DispatchMode == config.DispatchQueue {
		client := asynq.NewClient(config.AsynqRedisOpt(cfg))
		defer client.Close()
		dispatcher = queue.NewDispatcher(client, inline)
		logger.Info("Webhook deliveries will be queued", "queue", queue.QueueWebhooks)
	}

	// Scheduled jobs
	cron := services.NewCronService()
	refresher := services.NewCredentialRefresher(a.Store, a.Instagram, cfg.CredentialRefreshWindow, metrics)
	if err := cron.ScheduleCredentialRefresh(cfg.CredentialRefreshCron, refresher); err != nil {
		logger.Error("Failed to schedule credential refresh", "cron", cfg.CredentialRefreshCron, "error", err)
	} else {
		cron.Start()
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if err := a.Mongo.Ping(ctx, nil); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":          status,
			"timestamp":       time.Now(),
			"redis":           a.Redis != nil,
			"dispatch_mode":   cfg.DispatchMode,
			"circuit_breaker": a.Generator.BreakerState(),
		})
	})

	routes.SetupWebhookRoutes(router, routes.WebhookConfig{
		VerifyToken: cfg.VerifyToken,
		AppSecret:   cfg.InstagramAppSecret,
	}, dispatcher, metrics)

	routes.SetupOperatorRoutes(router, routes.OperatorDeps{
		Store:     a.Store,
		Cache:     a.Cache,
		MediaSync: services.NewMediaSyncService(a.Store, a.Instagram, 0),
		Export:    services.NewExportService(a.Store),
	}, middleware.NewAuthMiddleware(cfg.JWTSecret), middleware.RateLimitMiddleware(a.Redis, cfg.RateLimitReqs, cfg.RateLimitWindow))

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "dispatch_mode", cfg.DispatchMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := app.ShutdownContext()
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	cron.Stop()
	if err := inline.Shutdown(shutdownCtx); err != nil {
		logger.Warn("In-flight deliveries did not finish", "error", err)
	}

	logger.Info("Server exited")
}
