package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/extract"
	"fireflies/backend/internal/model"
)

// Client talks to the proxy endpoint. The proxy enforces its own per-page
// timeouts; the client adds an outer timeout per call so it never waits
// indefinitely on the proxy itself.
type Client struct {
	httpClient *http.Client
	endpoint   string
	authToken  string

	searchTimeout   time.Duration
	scrapeTimeout   time.Duration
	generateTimeout time.Duration
	modelsTimeout   time.Duration
}

type Option func(*Client)

// WithTimeouts sets the client-side timeouts; zero values keep the defaults.
func WithTimeouts(search, scrape, generate time.Duration) Option {
	return func(c *Client) {
		if search > 0 {
			c.searchTimeout = search
		}
		if scrape > 0 {
			c.scrapeTimeout = scrape
		}
		if generate > 0 {
			c.generateTimeout = generate
		}
	}
}

// WithAuthToken sends the token as a bearer Authorization header.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{},
		endpoint:        endpoint,
		searchTimeout:   45 * time.Second,
		scrapeTimeout:   20 * time.Second,
		generateTimeout: 5 * time.Minute,
		modelsTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search asks the proxy to resolve query to candidate pages and fetch them in
// one round trip. Only successful pages are returned, each cut to
// SearchContentLimit characters. The returned slice is never nil: on any
// failure it is empty and the error tells why (ErrTransport when the call
// failed, ErrInsufficientContent when no page was usable).
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	results := []model.SearchResult{}

	var resp SearchResponse
	if err := c.do(ctx, c.searchTimeout, &Request{Action: ActionSearch, Query: query}, &resp); err != nil {
		slog.Warn("Search request to proxy failed", "query", query, "error", err)
		return results, err
	}

	for _, item := range resp.URLsWithContent {
		if !item.Success || item.Content == "" {
			slog.Debug("Skipping search result", "url", item.URL, "reason", item.Error)
			continue
		}
		results = append(results, model.SearchResult{
			URL:     item.URL,
			Content: extract.Truncate(item.Content, SearchContentLimit),
		})
	}

	if len(results) == 0 {
		if resp.Error != "" {
			return results, fmt.Errorf("%w: %s", app_errors.ErrTransport, resp.Error)
		}
		return results, fmt.Errorf("%w: no page yielded usable content for %q", app_errors.ErrInsufficientContent, query)
	}

	slog.Info("Search completed", "query", query, "results", len(results))
	return results, nil
}

// Scrape fetches and extracts a single page through the proxy. It returns
// ErrInsufficientContent when fewer than ScrapeMinContent characters survive
// extraction and ErrTransport for any transport or HTTP failure. No retries.
func (c *Client) Scrape(ctx context.Context, url string) (string, error) {
	var resp WebResponse
	if err := c.do(ctx, c.scrapeTimeout, &Request{Action: ActionWeb, URL: url}, &resp); err != nil {
		slog.Warn("Scrape request to proxy failed", "url", url, "error", err)
		return "", err
	}

	if !resp.Success || resp.Content == nil {
		if resp.ErrorKind == ErrorKindInsufficientContent {
			return "", fmt.Errorf("%w: %s", app_errors.ErrInsufficientContent, resp.Error)
		}
		return "", fmt.Errorf("%w: %s", app_errors.ErrTransport, resp.Error)
	}

	content := extract.Truncate(*resp.Content, ScrapeContentLimit)
	if extract.Length(content) < ScrapeMinContent {
		return "", fmt.Errorf("%w: %d characters from %s", app_errors.ErrInsufficientContent, extract.Length(content), url)
	}
	return content, nil
}

// GenerateRequest is an inference call routed through the proxy.
type GenerateRequest struct {
	Prompt  string
	Model   string
	BaseURL string
	History []HistoryMessage
	Image   string // base64
}

// Generate runs inference and returns the full response text. Cancelling ctx
// aborts the in-flight request.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	body := &Request{
		Prompt:  req.Prompt,
		Model:   req.Model,
		BaseURL: req.BaseURL,
		History: req.History,
		Image:   req.Image,
	}
	if req.Image != "" {
		body.Action = ActionGenerate
	}

	var resp GenerateResponse
	if err := c.do(ctx, c.generateTimeout, body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", app_errors.ErrTransport, resp.Error)
	}
	return resp.Response, nil
}

// ListModels lists the models of the inference server at baseURL (the proxy's
// default server when empty).
func (c *Client) ListModels(ctx context.Context, baseURL string) ([]ModelInfo, error) {
	var resp ModelsResponse
	if err := c.do(ctx, c.modelsTimeout, &Request{Action: ActionGetModels, BaseURL: baseURL}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", app_errors.ErrTransport, resp.Error)
	}
	return resp.Models, nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, req *Request, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("could not marshal proxy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: could not create request: %w", app_errors.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			slog.Warn("Failed to close proxy response body", "error", cErr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: could not read response body: %w", app_errors.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: proxy returned status %d: %s", app_errors.ErrTransport, resp.StatusCode, extract.Truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: could not decode proxy response: %w", app_errors.ErrTransport, err)
	}
	return nil
}
