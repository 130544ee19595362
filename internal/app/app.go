package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"fireflies/backend/internal/api"
	"fireflies/backend/internal/auth"
	"fireflies/backend/internal/cache"
	"fireflies/backend/internal/config"
	"fireflies/backend/internal/database"
	"fireflies/backend/internal/llm"
	"fireflies/backend/internal/prompt"
	"fireflies/backend/internal/proxy"
	"fireflies/backend/internal/rag"
	"fireflies/backend/internal/repository"
	"fireflies/backend/internal/service"
	"fireflies/backend/internal/webfetch"
)

// App holds the wired components of a running backend.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Server   *http.Server
	Pipeline *rag.Pipeline
	Proxy    *proxy.Client

	closeCache func() error
}

// Setup loads the configuration and installs the JSON logger.
func Setup() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return nil, err
	}
	setupLogger(cfg.LogLevel)
	logConfigSource()
	return cfg, nil
}

// NewApp opens the database, applies migrations and wires every service
// behind the HTTP router.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)

	token := proxyToken(cfg)
	proxyHandler, closeCache := newProxyHandler(ctx, cfg)
	proxyClient := newProxyClient(cfg, cfg.EffectiveProxyURL(), token)
	pipeline := rag.NewPipeline(proxyClient, proxyClient, proxyClient, prompt.NewAssembler(cfg.MaxPromptContext))

	repo := repository.NewSQLiteRepository(db)
	settingsService := service.NewSettingsService(db, proxyClient, cfg.DefaultModel, cfg.FreeModel)
	chatService := service.NewChatService(repo, pipeline, proxyClient, settingsService, cfg.VisionModel, cfg.FreeModel)
	modelService := service.NewModelService(proxyClient, cfg.FreeModel)

	router := api.NewRouter(api.Handlers{
		Chat:            api.NewChatHandler(chatService, settingsService),
		Model:           api.NewModelHandler(modelService, settingsService),
		Proxy:           proxyHandler,
		Resolver:        newResolver(cfg),
		ProxyToken:      token,
		GenerateTimeout: cfg.ClientGenerateTimeout,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &App{
		Config:     cfg,
		DB:         db,
		Server:     server,
		Pipeline:   pipeline,
		Proxy:      proxyClient,
		closeCache: closeCache,
	}, nil
}

// Close releases the database and the cache connection.
func (a *App) Close() error {
	return errors.Join(a.closeCache(), a.DB.Close())
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	waitForOllama(ctx, a.Config.OllamaURL, 5)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", a.Config.AppPort, "proxy_url", a.Config.EffectiveProxyURL())
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Server.Shutdown(shutdownCtx)
}

// Run starts the backend with configuration from the environment. It returns
// the process exit code.
func Run(ctx context.Context) int {
	cfg, err := Setup()
	if err != nil {
		return 1
	}

	a, err := NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to release resources", "error", err)
		}
	}()

	if err := a.Serve(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

// newProxyHandler wires the proxy endpoint: page fetching behind the page
// cache, and inference against OLLAMA_URL or the request's baseUrl.
func newProxyHandler(ctx context.Context, cfg *config.Config) (*api.ProxyHandler, func() error) {
	pageCache, closeCache := cache.New(ctx, cfg.RedisAddr, cfg.CacheTTL)
	fetcher := webfetch.New(webfetch.Options{
		SearchEngineURL: cfg.SearchEngineURL,
		RateLimit:       cfg.FetchRateLimit,
		Burst:           cfg.FetchBurst,
		Parallel:        cfg.ParallelFetch,
		Cache:           pageCache,

		AllowPrivateHosts: cfg.AllowPrivate,
	})
	return api.NewProxyHandler(fetcher, llm.NewFactory(cfg.OllamaURL), cfg.DefaultModel), closeCache
}

func newProxyClient(cfg *config.Config, endpoint, token string) *proxy.Client {
	return proxy.NewClient(endpoint,
		proxy.WithTimeouts(cfg.ClientSearchTimeout, cfg.ClientScrapeTimeout, cfg.ClientGenerateTimeout),
		proxy.WithAuthToken(token))
}

// proxyToken returns PROXY_TOKEN, or a random token valid for this process
// only when none is configured.
func proxyToken(cfg *config.Config) string {
	if cfg.ProxyToken != "" {
		return cfg.ProxyToken
	}
	if cfg.ProxyURL != "" {
		slog.Warn("PROXY_URL is set without PROXY_TOKEN, the external proxy will reject requests")
	}
	return uuid.NewString()
}

func newResolver(cfg *config.Config) auth.Resolver {
	if cfg.SupabaseURL == "" {
		slog.Warn("SUPABASE_URL not set, trusting the X-User-ID header for authentication")
		return auth.DevResolver{}
	}
	return auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil)
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// waitForOllama polls the inference server up to attempts times. The server
// starts regardless; the proxy reports inference failures per request.
func waitForOllama(ctx context.Context, ollamaURL string, attempts int) bool {
	slog.Info("Waiting for Ollama to be ready...", "url", ollamaURL)
	client := &http.Client{Timeout: 2 * time.Second}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaURL, nil)
		if err != nil {
			slog.Warn("Invalid Ollama URL", "url", ollamaURL, "error", err)
			return false
		}
		resp, err := client.Do(req)
		if resp != nil {
			if bErr := resp.Body.Close(); bErr != nil {
				slog.Warn("Failed to close response body in ollama health check", "error", bErr)
			}
		}
		if err == nil && resp.StatusCode == http.StatusOK {
			slog.Info("Ollama is ready.")
			return true
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(3 * time.Second):
		}
	}
	slog.Warn("Ollama did not become ready, starting anyway", "url", ollamaURL)
	return false
}
