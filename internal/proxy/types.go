// Package proxy holds the wire contract of the search-and-fetch proxy and an
// HTTP client for it. Every request is a POST with an "action" field.
package proxy

import "time"

// Actions understood by the proxy. An empty action means inference.
const (
	ActionSearch    = "search"
	ActionWeb       = "web"
	ActionGetModels = "get_models"
	ActionGenerate  = "generate"
)

// Values of the errorKind field on failed page results.
const (
	ErrorKindTransport           = "transport"
	ErrorKindInsufficientContent = "insufficient_content"
)

// Limits shared by the proxy server and its clients.
const (
	MaxCandidateURLs   = 3
	SearchFetchTimeout = 10 * time.Second
	SearchMinContent   = 100
	SearchContentLimit = 2000
	ScrapeFetchTimeout = 15 * time.Second
	ScrapeMinContent   = 50
	ScrapeContentLimit = 5000
)

// Request is the single request body of the proxy endpoint.
type Request struct {
	Action  string           `json:"action,omitempty"`
	Query   string           `json:"query,omitempty"`
	URL     string           `json:"url,omitempty"`
	BaseURL string           `json:"baseUrl,omitempty"`
	Prompt  string           `json:"prompt,omitempty"`
	Model   string           `json:"model,omitempty"`
	History []HistoryMessage `json:"history,omitempty"`
	Image   string           `json:"image,omitempty"` // base64, no data-URL prefix
}

// HistoryMessage is one prior chat turn sent along with a prompt.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PageResult is the outcome of fetching one candidate URL.
type PageResult struct {
	URL       string `json:"url"`
	Content   string `json:"content,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// SearchResponse answers ActionSearch.
type SearchResponse struct {
	URLs            []string     `json:"urls"`
	URLsWithContent []PageResult `json:"urlsWithContent"`
	Error           string       `json:"error,omitempty"`
}

// WebResponse answers ActionWeb. Content is null on failure.
type WebResponse struct {
	Content   *string `json:"content"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	ErrorKind string  `json:"errorKind,omitempty"`
}

// ModelInfo is one entry of an Ollama model listing.
type ModelInfo struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
}

// ModelsResponse answers ActionGetModels.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Error  string      `json:"error,omitempty"`
}

// GenerateResponse answers an inference request.
type GenerateResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}
