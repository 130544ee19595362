package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"fireflies/backend/internal/api"
	"fireflies/backend/internal/command"
	"fireflies/backend/internal/config"
	"fireflies/backend/internal/database"
	"fireflies/backend/internal/prompt"
	"fireflies/backend/internal/proxy"
	"fireflies/backend/internal/rag"
	"fireflies/backend/internal/session"
)

// Migration directions accepted by Migrate.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateVersion = "version"
)

// Migrate applies or rolls back schema migrations, or reports the current
// version, and returns a line describing the result.
func Migrate(cfg *config.Config, direction string, steps int) (string, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}()

	switch direction {
	case MigrateUp:
		if err := database.MigrateUp(db); err != nil {
			return "", err
		}
	case MigrateDown:
		if err := database.MigrateDown(db, steps); err != nil {
			return "", err
		}
	case MigrateVersion:
	default:
		return "", fmt.Errorf("unknown migration direction %q", direction)
	}

	version, dirty, err := database.Version(db)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("schema version %d (dirty: %t)", version, dirty), nil
}

// Ask routes one message and runs it like the chat would, without history or
// persistence. Without PROXY_URL the proxy is served in-process.
func Ask(ctx context.Context, cfg *config.Config, message string) (string, error) {
	endpoint := cfg.ProxyURL
	token := proxyToken(cfg)
	if endpoint == "" {
		local, stop, err := serveLocalProxy(ctx, cfg, token)
		if err != nil {
			return "", err
		}
		defer stop()
		endpoint = local
	}

	client := newProxyClient(cfg, endpoint, token)
	cmd := command.Route(message, nil)
	slog.Debug("Routed message", "command", cmd.Name())

	if plain, ok := cmd.(command.PlainChat); ok {
		answer, err := client.Generate(ctx, &proxy.GenerateRequest{Prompt: plain.Text, Model: cfg.DefaultModel})
		if err != nil {
			return "", err
		}
		if answer == "" {
			return session.NoResponseMessage, nil
		}
		return answer, nil
	}

	pipeline := rag.NewPipeline(client, client, client, prompt.NewAssembler(cfg.MaxPromptContext))
	reply, err := pipeline.Execute(ctx, cmd, cfg.DefaultModel, "")
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// serveLocalProxy serves the proxy endpoint on an ephemeral loopback port and
// returns its URL and a stop function.
func serveLocalProxy(ctx context.Context, cfg *config.Config, token string) (string, func(), error) {
	handler, closeCache := newProxyHandler(ctx, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = closeCache()
		return "", nil, fmt.Errorf("could not listen for local proxy: %w", err)
	}
	srv := &http.Server{
		Handler:           api.RequireProxyToken(token)(http.HandlerFunc(handler.HandleProxy)),
		ReadHeaderTimeout: 20 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Local proxy failed", "error", err)
		}
	}()

	stop := func() {
		_ = srv.Close()
		_ = closeCache()
	}
	return fmt.Sprintf("http://%s/api/v1/proxy", ln.Addr().String()), stop, nil
}
