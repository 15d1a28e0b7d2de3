// Package app wires the comment pipeline from configuration. The API server
// and the queue worker share it.
package app

import (
	"context"
	"fmt"
	"time"

	"social-autoreply-platform/internal/ai"
	"social-autoreply-platform/internal/cache"
	"social-autoreply-platform/internal/config"
	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/instagram"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/telemetry"
	"social-autoreply-platform/services"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	Config    *config.Config
	Mongo     *mongo.Client
	Store     *database.MongoStore
	Redis     *redis.Client // nil when Redis is unreachable
	Cache     *cache.OwnershipCache
	Instagram *instagram.Client
	Generator *ai.ReplyGenerator
	AutoReply *services.AutoReplyService
	Metrics   *telemetry.Metrics

	closers []func(context.Context) error
}

// Build connects to Mongo (required) and Redis (optional) and assembles the
// pipeline services.
func Build(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return nil, err
	}
	a.Mongo = mongoClient
	a.closers = append(a.closers, mongoClient.Disconnect)
	logger.Info("Connected to MongoDB", "db", cfg.DBName)

	store, err := database.NewMongoStore(ctx, mongoClient.Database(cfg.DBName))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.Store = store

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		// The cache and rate limiter are optional; lookups fall through to Mongo.
		logger.Warn("Redis unavailable; ownership cache and rate limiting disabled", "error", err)
	} else {
		a.Redis = rdb
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	}
	a.Cache = cache.NewOwnershipCache(a.Redis, cfg.OwnershipCacheTTL)

	a.Instagram = instagram.NewClient(cfg.GraphAPIURL, cfg.PublishTimeout)

	completer, models, closeCompleter, err := newCompleter(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if closeCompleter != nil {
		a.closers = append(a.closers, closeCompleter)
	}

	a.Generator = ai.NewReplyGenerator(completer, ai.GeneratorConfig{
		BusinessName:  cfg.BusinessName,
		FallbackReply: cfg.FallbackReply,
		Models:        models,
		Timeout:       cfg.GenerationTimeout,
		RPM:           cfg.GenerationRPM,
	}, metrics)

	a.AutoReply = services.NewAutoReplyService(services.AutoReplyConfig{
		WebhookObject:   cfg.WebhookObject,
		DefaultContext:  cfg.DefaultContext,
		ClaimStaleAfter: cfg.ReplyClaimStaleAfter,
	}, store, services.NewOwnershipResolver(store, a.Cache), a.Generator, a.Instagram, metrics)

	return a, nil
}

func newCompleter(ctx context.Context, cfg *config.Config) (ai.Completer, []string, func(context.Context) error, error) {
	switch cfg.GenerationProvider {
	case config.ProviderGemini:
		model, err := ai.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GenerationTemperature)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init gemini: %w", err)
		}
		logger.Info("Reply generation via Gemini", "model", cfg.GeminiModel, "fallback_model", cfg.GeminiFallbackModel)
		return model, modelList(cfg.GeminiModel, cfg.GeminiFallbackModel),
			func(context.Context) error { return model.Close() }, nil
	default:
		model := ai.NewOpenRouterModel(ai.OpenRouterConfig{
			APIKey:      cfg.OpenRouterAPIKey,
			APIURL:      cfg.OpenRouterAPIURL,
			SiteURL:     cfg.OpenRouterSiteURL,
			SiteName:    cfg.OpenRouterSiteName,
			Temperature: cfg.GenerationTemperature,
		})
		logger.Info("Reply generation via OpenRouter", "model", cfg.OpenRouterModel, "fallback_model", cfg.OpenRouterFallbackModel)
		return model, modelList(cfg.OpenRouterModel, cfg.OpenRouterFallbackModel), nil, nil
	}
}

func modelList(primary, fallback string) []string {
	models := []string{primary}
	if fallback != "" && fallback != primary {
		models = append(models, fallback)
	}
	return models
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("Error during shutdown", "error", err)
		}
	}
	a.closers = nil
}

// ShutdownContext bounds cleanup work at process exit.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
