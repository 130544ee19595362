package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort      int    `mapstructure:"APP_PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`
	OllamaURL    string `mapstructure:"OLLAMA_URL"`
	ProxyURL     string `mapstructure:"PROXY_URL"`
	ProxyToken   string `mapstructure:"PROXY_TOKEN"`
	DefaultModel string `mapstructure:"DEFAULT_MODEL"`
	VisionModel  string `mapstructure:"VISION_MODEL"`
	FreeModel    string `mapstructure:"FREE_MODEL"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`

	RedisAddr string        `mapstructure:"REDIS_ADDR"`
	CacheTTL  time.Duration `mapstructure:"CACHE_TTL"`

	SearchEngineURL string  `mapstructure:"SEARCH_ENGINE_URL"`
	FetchRateLimit  float64 `mapstructure:"FETCH_RATE_LIMIT"`
	FetchBurst      int     `mapstructure:"FETCH_BURST"`
	ParallelFetch   bool    `mapstructure:"PARALLEL_FETCH"`
	AllowPrivate    bool    `mapstructure:"FETCH_ALLOW_PRIVATE"`

	ClientSearchTimeout   time.Duration `mapstructure:"CLIENT_SEARCH_TIMEOUT"`
	ClientScrapeTimeout   time.Duration `mapstructure:"CLIENT_SCRAPE_TIMEOUT"`
	ClientGenerateTimeout time.Duration `mapstructure:"CLIENT_GENERATE_TIMEOUT"`
	MaxPromptContext      int           `mapstructure:"MAX_PROMPT_CONTEXT"`

	SupabaseURL     string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey string `mapstructure:"SUPABASE_ANON_KEY"`
}

// SelfProxyURL is the proxy endpoint served by this process.
func (c *Config) SelfProxyURL() string {
	return fmt.Sprintf("http://localhost:%d/api/v1/proxy", c.AppPort)
}

// EffectiveProxyURL returns PROXY_URL, falling back to this process's own endpoint.
func (c *Config) EffectiveProxyURL() string {
	if c.ProxyURL != "" {
		return c.ProxyURL
	}
	return c.SelfProxyURL()
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "/data/fireflies.db")
	viper.SetDefault("OLLAMA_URL", "http://ollama:11434")
	viper.SetDefault("PROXY_URL", "")
	viper.SetDefault("PROXY_TOKEN", "")
	viper.SetDefault("DEFAULT_MODEL", "FireFlies:latest")
	viper.SetDefault("VISION_MODEL", "gemma3:4b")
	viper.SetDefault("FREE_MODEL", "FireFlies:latest")
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("CACHE_TTL", "30m")

	viper.SetDefault("SEARCH_ENGINE_URL", "https://html.duckduckgo.com/html/")
	viper.SetDefault("FETCH_RATE_LIMIT", 5.0)
	viper.SetDefault("FETCH_BURST", 10)
	viper.SetDefault("PARALLEL_FETCH", true)
	viper.SetDefault("FETCH_ALLOW_PRIVATE", false)

	viper.SetDefault("CLIENT_SEARCH_TIMEOUT", "45s")
	viper.SetDefault("CLIENT_SCRAPE_TIMEOUT", "20s")
	viper.SetDefault("CLIENT_GENERATE_TIMEOUT", "5m")
	viper.SetDefault("MAX_PROMPT_CONTEXT", 8000)

	viper.SetDefault("SUPABASE_URL", "")
	viper.SetDefault("SUPABASE_ANON_KEY", "")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
