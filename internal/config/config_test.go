package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig verifies the layered configuration: defaults first, then
// environment variables overriding them.
func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 8000, cfg.AppPort)
		assert.Equal(t, "FireFlies:latest", cfg.DefaultModel)
		assert.Equal(t, "gemma3:4b", cfg.VisionModel)
		assert.Equal(t, "FireFlies:latest", cfg.FreeModel)
		assert.Equal(t, 45*time.Second, cfg.ClientSearchTimeout)
		assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
		assert.Equal(t, 8000, cfg.MaxPromptContext)
		assert.True(t, cfg.ParallelFetch)
		assert.False(t, cfg.AllowPrivate)
		assert.Empty(t, cfg.ProxyToken)
		// Without PROXY_URL the pipeline talks to this process's own proxy endpoint.
		assert.Equal(t, "http://localhost:8000/api/v1/proxy", cfg.EffectiveProxyURL())
	})

	t.Run("Environment overrides defaults", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		t.Setenv("DEFAULT_MODEL", "llama3:8b")
		t.Setenv("PROXY_URL", "http://proxy.internal/api/v1/proxy")
		t.Setenv("PARALLEL_FETCH", "false")
		t.Setenv("CLIENT_SCRAPE_TIMEOUT", "7s")
		t.Setenv("FREE_MODEL", "llama3:8b")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "llama3:8b", cfg.DefaultModel)
		assert.Equal(t, "http://proxy.internal/api/v1/proxy", cfg.EffectiveProxyURL())
		assert.False(t, cfg.ParallelFetch)
		assert.Equal(t, 7*time.Second, cfg.ClientScrapeTimeout)
		assert.Equal(t, "llama3:8b", cfg.FreeModel)
	})
}
