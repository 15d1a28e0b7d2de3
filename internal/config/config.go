package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DispatchInline = "inline"
	DispatchQueue  = "queue"

	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	MongoURI string
	DBName   string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Operator API authentication
	JWTSecret       string
	RateLimitReqs   int
	RateLimitWindow int

	// Webhook
	VerifyToken        string
	InstagramAppSecret string
	WebhookObject      string
	DispatchMode       string

	// Graph API
	GraphAPIURL    string
	PublishTimeout time.Duration

	// Reply generation
	GenerationProvider      string
	OpenRouterAPIKey        string
	OpenRouterAPIURL        string
	OpenRouterModel         string
	OpenRouterFallbackModel string
	OpenRouterSiteURL       string
	OpenRouterSiteName      string
	GeminiAPIKey            string
	GeminiModel             string
	GeminiFallbackModel     string
	GenerationTimeout       time.Duration
	GenerationTemperature   float64
	GenerationRPM           int
	BusinessName            string
	DefaultContext          string
	FallbackReply           string

	// Idempotence and ownership
	ReplyClaimStaleAfter time.Duration
	OwnershipCacheTTL    time.Duration

	// Telemetry
	TracingEnabled     bool
	OTLPEndpoint       string
	TracingSampleRatio float64

	// Credential refresh job
	CredentialRefreshCron   string
	CredentialRefreshWindow time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/social_autoreply"),
		DBName:   getEnv("DB_NAME", "social_autoreply"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		VerifyToken:        getEnv("VERIFY_TOKEN", ""),
		InstagramAppSecret: getEnv("INSTAGRAM_APP_SECRET", ""),
		WebhookObject:      getEnv("WEBHOOK_OBJECT", "instagram"),
		DispatchMode:       getEnv("DISPATCH_MODE", DispatchInline),

		GraphAPIURL:    strings.TrimRight(getEnv("GRAPH_API_URL", "https://graph.instagram.com"), "/"),
		PublishTimeout: getEnvDuration("PUBLISH_TIMEOUT", 10*time.Second),

		GenerationProvider:      getEnv("GENERATION_PROVIDER", ProviderOpenRouter),
		OpenRouterAPIKey:        getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterAPIURL:        getEnv("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterModel:         getEnv("OPENROUTER_MODEL", "stepfun/step-3.5-flash:free"),
		OpenRouterFallbackModel: getEnv("OPENROUTER_FALLBACK_MODEL", ""),
		OpenRouterSiteURL:       getEnv("OPENROUTER_SITE_URL", ""),
		OpenRouterSiteName:      getEnv("OPENROUTER_SITE_NAME", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiFallbackModel:     getEnv("GEMINI_FALLBACK_MODEL", ""),
		GenerationTimeout:       getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		GenerationTemperature:   getEnvFloat64("GENERATION_TEMPERATURE", 0.2),
		GenerationRPM:           getEnvInt("GENERATION_RPM", 60),
		BusinessName:            getEnv("BUSINESS_NAME", "Rumo Restaurant"),
		DefaultContext:          getEnv("DEFAULT_CONTEXT", "We serve delicious food at Rumo Restaurant."),
		FallbackReply:           getEnv("FALLBACK_REPLY", "Thank you for reaching out! 😊"),

		ReplyClaimStaleAfter: getEnvDuration("REPLY_CLAIM_STALE_AFTER", 10*time.Minute),
		OwnershipCacheTTL:    getEnvDuration("OWNERSHIP_CACHE_TTL", 10*time.Minute),

		TracingEnabled:     getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRatio: getEnvFloat64("TRACING_SAMPLE_RATIO", 0.1),

		CredentialRefreshCron:   getEnv("CREDENTIAL_REFRESH_CRON", "0 */6 * * *"),
		CredentialRefreshWindow: getEnvDuration("CREDENTIAL_REFRESH_WINDOW", 7*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if c.VerifyToken == "" {
		return fmt.Errorf("VERIFY_TOKEN is required - set it in .env file")
	}

	switch c.DispatchMode {
	case DispatchInline, DispatchQueue:
	default:
		return fmt.Errorf("DISPATCH_MODE must be %q or %q, got %q", DispatchInline, DispatchQueue, c.DispatchMode)
	}

	switch c.GenerationProvider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("GENERATION_PROVIDER must be %q or %q, got %q", ProviderOpenRouter, ProviderGemini, c.GenerationProvider)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
