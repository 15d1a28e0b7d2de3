package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("VERIFY_TOKEN", "verify")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "instagram", cfg.WebhookObject)
	assert.Equal(t, DispatchInline, cfg.DispatchMode)
	assert.Equal(t, ProviderOpenRouter, cfg.GenerationProvider)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 0.2, cfg.GenerationTemperature)
	assert.Equal(t, "Thank you for reaching out! 😊", cfg.FallbackReply)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("VERIFY_TOKEN", "verify")
	t.Setenv("GRAPH_API_URL", "http://graph.local/")
	t.Setenv("PUBLISH_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DISPATCH_MODE", "queue")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://graph.local", cfg.GraphAPIURL)
	assert.Equal(t, 3*time.Second, cfg.PublishTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, DispatchQueue, cfg.DispatchMode)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"VERIFY_TOKEN": "v"}},
		{"missing verify token", map[string]string{"JWT_SECRET": "s"}},
		{"bad dispatch mode", map[string]string{"JWT_SECRET": "s", "VERIFY_TOKEN": "v", "DISPATCH_MODE": "kafka"}},
		{"bad provider", map[string]string{"JWT_SECRET": "s", "VERIFY_TOKEN": "v", "GENERATION_PROVIDER": "llama"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("VERIFY_TOKEN", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
