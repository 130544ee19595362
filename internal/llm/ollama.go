package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	app_errors "fireflies/backend/internal/errors"
)

// Provider talks to one Ollama server.
type Provider interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ProviderFactory returns a Provider for a base URL; an empty URL selects the
// configured default server.
type ProviderFactory func(baseURL string) Provider

type ollamaProvider struct {
	client *http.Client
	url    string
}

func NewOllamaProvider(url string) Provider {
	return &ollamaProvider{
		client: &http.Client{},
		url:    strings.TrimRight(url, "/"),
	}
}

// NewFactory builds providers that default to defaultURL.
func NewFactory(defaultURL string) ProviderFactory {
	return func(baseURL string) Provider {
		if baseURL == "" {
			baseURL = defaultURL
		}
		return NewOllamaProvider(baseURL)
	}
}

// GenerateRequest covers both Ollama inference endpoints. Messages selects
// /api/chat; otherwise Prompt (and Images) go to /api/generate.
type GenerateRequest struct {
	Model    string    `json:"model"`
	Prompt   string    `json:"prompt,omitempty"`
	Images   []string  `json:"images,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Stream   bool      `json:"stream"`
}

type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ModelInfo is one entry of /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

func (p *ollamaProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	endpoint := p.url + "/api/generate"
	if len(req.Messages) > 0 {
		endpoint = p.url + "/api/chat"
	}

	bodyBytes, err := p.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	if len(req.Messages) > 0 {
		var chatResp struct {
			Model   string  `json:"model"`
			Message Message `json:"message"`
			Done    bool    `json:"done"`
		}
		if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
			return nil, fmt.Errorf("%w: could not decode chat response: %w", app_errors.ErrTransport, err)
		}
		return &GenerateResponse{Model: chatResp.Model, Response: chatResp.Message.Content, Done: chatResp.Done}, nil
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(bodyBytes, &genResp); err != nil {
		return nil, fmt.Errorf("%w: could not decode generate response: %w", app_errors.ErrTransport, err)
	}
	return &genResp, nil
}

func (p *ollamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create request: %w", app_errors.ErrTransport, err)
	}
	bodyBytes, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}

	var tags struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(bodyBytes, &tags); err != nil {
		return nil, fmt.Errorf("%w: could not decode model list: %w", app_errors.ErrTransport, err)
	}
	if tags.Models == nil {
		tags.Models = []ModelInfo{}
	}
	return tags.Models, nil
}

func (p *ollamaProvider) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: could not create request: %w", app_errors.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return p.do(httpReq)
}

func (p *ollamaProvider) do(httpReq *http.Request) ([]byte, error) {
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response body: %w", app_errors.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", app_errors.ErrTransport, resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}
