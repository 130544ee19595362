package api

import (
	"net/http"
	"time"

	// Registers the generated API definitions with swag.
	_ "fireflies/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"fireflies/backend/internal/auth"
)

// Handlers groups everything NewRouter mounts.
type Handlers struct {
	Chat     *ChatHandler
	Model    *ModelHandler
	Proxy    *ProxyHandler
	Resolver auth.Resolver
	// ProxyToken is the bearer token the proxy endpoint requires.
	ProxyToken string
	// GenerateTimeout bounds message sends and proxy calls, which wait for inference.
	GenerateTimeout time.Duration
}

// NewRouter creates the chi router with all routes.
func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	longTimeout := h.GenerateTimeout
	if longTimeout <= 0 {
		longTimeout = 5 * time.Minute
	}

	r.Route("/api/v1", func(r chi.Router) {
		// The pipeline calls the proxy with a shared token, not a user session.
		r.With(RequireProxyToken(h.ProxyToken), middleware.Timeout(longTimeout+30*time.Second)).
			Post("/proxy", h.Proxy.HandleProxy)

		r.Group(func(r chi.Router) {
			r.Use(RequireProfile(h.Resolver))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/settings", h.Chat.GetSettings)
				r.Put("/settings", h.Chat.UpdateSettings)
				r.Get("/subscription", h.Chat.GetSubscription)

				r.Get("/chats", h.Chat.GetChats)
				r.Get("/chats/{chatID}", h.Chat.GetChat)
				r.Put("/chats/{chatID}/title", h.Chat.UpdateChatTitle)
				r.Delete("/chats/{chatID}", h.Chat.HandleDeleteChat)
				r.Post("/chats/{chatID}/stop", h.Chat.HandleStopGeneration)

				r.Get("/models", h.Model.HandleListModels)
			})

			// Sends wait for the full inference round trip.
			r.With(middleware.Timeout(longTimeout+time.Minute)).Post("/chats/messages", h.Chat.HandleSendMessage)
		})
	})

	return r
}
