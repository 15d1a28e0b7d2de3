package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"social-autoreply-platform/internal/app"
	"social-autoreply-platform/internal/config"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/queue"
	"social-autoreply-platform/internal/telemetry"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer("social-autoreply-worker", cfg.OTLPEndpoint, cfg.TracingSampleRatio)
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

	a, err := app.Build(context.Background(), cfg, metrics)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := app.ShutdownContext()
		defer cancel()
		a.Close(ctx)
	}()

	redisOpt := config.AsynqRedisOpt(cfg)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueueWebhooks: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(a.AutoReply)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskWebhookDelivery, processor.ProcessWebhookDelivery)

	logger.Info("Starting Asynq worker", "concurrency", 10, "queue", queue.QueueWebhooks, "redis", redisOpt.Addr)

	if err := server.Start(mux); err != nil {
		logger.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	server.Shutdown()
}
