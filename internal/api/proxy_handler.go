package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fireflies/backend/internal/llm"
	"fireflies/backend/internal/proxy"
	"fireflies/backend/internal/session"
)

// PageFetcher resolves searches and fetches pages. *webfetch.Fetcher
// satisfies it.
type PageFetcher interface {
	Search(ctx context.Context, query string) proxy.SearchResponse
	Scrape(ctx context.Context, url string) proxy.WebResponse
}

// ProxyHandler serves the single-endpoint proxy used by the RAG pipeline.
type ProxyHandler struct {
	pages        PageFetcher
	providers    llm.ProviderFactory
	defaultModel string
}

func NewProxyHandler(pages PageFetcher, providers llm.ProviderFactory, defaultModel string) *ProxyHandler {
	return &ProxyHandler{pages: pages, providers: providers, defaultModel: defaultModel}
}

// HandleProxy godoc
// @Summary      Search, fetch and inference proxy
// @Description  Dispatches on the action field: "search" resolves and fetches up to three result pages, "web" fetches one page, "get_models" lists the models of baseUrl, anything else runs inference.
// @Tags         Proxy
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      proxy.Request  true  "Proxy request"
// @Success      200      {object}  proxy.SearchResponse
// @Success      200      {object}  proxy.WebResponse
// @Success      200      {object}  proxy.ModelsResponse
// @Success      200      {object}  proxy.GenerateResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /v1/proxy [post]
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req proxy.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}

	switch req.Action {
	case proxy.ActionSearch:
		h.search(w, r, &req)
	case proxy.ActionWeb:
		h.scrape(w, r, &req)
	case proxy.ActionGetModels:
		h.listModels(w, r, &req)
	case "", proxy.ActionGenerate:
		h.generate(w, r, &req)
	default:
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Unknown action %q", req.Action)})
	}
}

func (h *ProxyHandler) search(w http.ResponseWriter, r *http.Request, req *proxy.Request) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Query is required"})
		return
	}
	respondWithJSON(w, http.StatusOK, h.pages.Search(r.Context(), query))
}

func (h *ProxyHandler) scrape(w http.ResponseWriter, r *http.Request, req *proxy.Request) {
	target := strings.TrimSpace(req.URL)
	if target == "" {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "URL is required"})
		return
	}
	respondWithJSON(w, http.StatusOK, h.pages.Scrape(r.Context(), target))
}

func (h *ProxyHandler) listModels(w http.ResponseWriter, r *http.Request, req *proxy.Request) {
	models, err := h.providers(req.BaseURL).ListModels(r.Context())
	if err != nil {
		slog.Warn("Model listing failed", "base_url", req.BaseURL, "error", err)
		respondWithJSON(w, http.StatusBadGateway, proxy.ModelsResponse{Models: []proxy.ModelInfo{}, Error: err.Error()})
		return
	}

	out := make([]proxy.ModelInfo, 0, len(models))
	for _, m := range models {
		info := proxy.ModelInfo{Name: m.Name, Model: m.Model, Size: m.Size}
		if !m.ModifiedAt.IsZero() {
			info.ModifiedAt = m.ModifiedAt.Format(time.RFC3339)
		}
		out = append(out, info)
	}
	respondWithJSON(w, http.StatusOK, proxy.ModelsResponse{Models: out})
}

// generate runs inference. An image selects /api/generate with the image
// attached; history selects /api/chat with the prompt as the last user turn.
func (h *ProxyHandler) generate(w http.ResponseWriter, r *http.Request, req *proxy.Request) {
	prompt := req.Prompt
	if prompt == "" && req.Image != "" {
		prompt = session.DefaultImagePrompt
	}
	if strings.TrimSpace(prompt) == "" {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Prompt is required"})
		return
	}

	genReq := &llm.GenerateRequest{Model: req.Model}
	if genReq.Model == "" {
		genReq.Model = h.defaultModel
	}
	switch {
	case req.Image != "":
		genReq.Prompt = prompt
		genReq.Images = []string{req.Image}
	case len(req.History) > 0:
		for _, m := range req.History {
			genReq.Messages = append(genReq.Messages, llm.Message{Role: m.Role, Content: m.Content})
		}
		genReq.Messages = append(genReq.Messages, llm.Message{Role: "user", Content: prompt})
	default:
		genReq.Prompt = prompt
	}

	resp, err := h.providers(req.BaseURL).Generate(r.Context(), genReq)
	if err != nil {
		slog.Error("Inference failed", "model", genReq.Model, "base_url", req.BaseURL, "error", err)
		respondWithJSON(w, http.StatusBadGateway, proxy.GenerateResponse{Error: err.Error()})
		return
	}
	respondWithJSON(w, http.StatusOK, proxy.GenerateResponse{Response: resp.Response})
}
