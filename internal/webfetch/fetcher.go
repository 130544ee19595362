// Package webfetch is the server side of the search-and-fetch proxy: it
// resolves a query to candidate URLs, downloads pages and reduces them to
// plain text.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"fireflies/backend/internal/cache"
	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/extract"
	"fireflies/backend/internal/proxy"
)

const (
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxBodySize = 2 << 20
)

// Options configures a Fetcher. Zero values select sensible defaults.
type Options struct {
	SearchEngineURL string
	RateLimit       float64 // fetches per second
	Burst           int
	Parallel        bool
	// HTTPClient replaces the default client, which refuses to dial
	// non-public addresses unless AllowPrivateHosts is set.
	HTTPClient *http.Client
	Cache      cache.Cache
	// AllowPrivateHosts lets pages on loopback, private and link-local
	// addresses be fetched.
	AllowPrivateHosts bool
}

// Fetcher performs the outbound HTTP work of the proxy.
type Fetcher struct {
	httpClient *http.Client
	cache      cache.Cache
	limiter    *rate.Limiter
	searchURL  string
	parallel   bool
	allowLocal bool
}

func New(opts Options) *Fetcher {
	if opts.SearchEngineURL == "" {
		opts.SearchEngineURL = "https://html.duckduckgo.com/html/"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient(opts.AllowPrivateHosts)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache(1000, 30*time.Minute)
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &Fetcher{
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		limiter:    rate.NewLimiter(limit, opts.Burst),
		searchURL:  opts.SearchEngineURL,
		parallel:   opts.Parallel,
		allowLocal: opts.AllowPrivateHosts,
	}
}

// Search resolves query to at most proxy.MaxCandidateURLs pages and fetches
// each of them. The result records keep the order of the search engine. A
// page is successful only if more than proxy.SearchMinContent characters
// survive extraction.
func (f *Fetcher) Search(ctx context.Context, query string) proxy.SearchResponse {
	urls, err := f.ResolveURLs(ctx, query)
	if err != nil {
		slog.Warn("Search engine lookup failed", "query", query, "error", err)
		return proxy.SearchResponse{URLs: []string{}, URLsWithContent: []proxy.PageResult{}, Error: err.Error()}
	}

	results := make([]proxy.PageResult, len(urls))
	fetchOne := func(i int) {
		results[i] = f.searchPage(ctx, urls[i])
	}

	if f.parallel {
		g := new(errgroup.Group)
		g.SetLimit(proxy.MaxCandidateURLs)
		for i := range urls {
			g.Go(func() error {
				fetchOne(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range urls {
			fetchOne(i)
		}
	}

	slog.Info("Search fetched candidate pages", "query", query, "candidates", len(urls))
	return proxy.SearchResponse{URLs: urls, URLsWithContent: results}
}

func (f *Fetcher) searchPage(ctx context.Context, pageURL string) proxy.PageResult {
	text, err := f.FetchText(ctx, pageURL, proxy.SearchFetchTimeout)
	if err != nil {
		slog.Debug("Candidate page fetch failed", "url", pageURL, "error", err)
		return proxy.PageResult{URL: pageURL, Success: false, Error: err.Error(), ErrorKind: proxy.ErrorKindTransport}
	}
	if extract.Length(text) <= proxy.SearchMinContent {
		return proxy.PageResult{
			URL:       pageURL,
			Success:   false,
			Error:     fmt.Sprintf("content too short: %d characters", extract.Length(text)),
			ErrorKind: proxy.ErrorKindInsufficientContent,
		}
	}
	return proxy.PageResult{URL: pageURL, Content: extract.Truncate(text, proxy.SearchContentLimit), Success: true}
}

// Scrape fetches a single page. It succeeds when at least
// proxy.ScrapeMinContent characters survive extraction.
func (f *Fetcher) Scrape(ctx context.Context, pageURL string) proxy.WebResponse {
	text, err := f.FetchText(ctx, pageURL, proxy.ScrapeFetchTimeout)
	if err != nil {
		slog.Warn("Scrape fetch failed", "url", pageURL, "error", err)
		return proxy.WebResponse{Success: false, Error: err.Error(), ErrorKind: proxy.ErrorKindTransport}
	}
	if extract.Length(text) < proxy.ScrapeMinContent {
		return proxy.WebResponse{
			Success:   false,
			Error:     fmt.Sprintf("content too short: %d characters", extract.Length(text)),
			ErrorKind: proxy.ErrorKindInsufficientContent,
		}
	}
	content := extract.Truncate(text, proxy.ScrapeContentLimit)
	return proxy.WebResponse{Content: &content, Success: true}
}

// ResolveURLs queries the search engine and returns up to
// proxy.MaxCandidateURLs distinct result URLs.
func (f *Fetcher) ResolveURLs(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(f.searchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search engine URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	body, err := f.get(ctx, u.String(), proxy.SearchFetchTimeout)
	if err != nil {
		return nil, err
	}

	urls, err := ParseResultLinks(strings.NewReader(body), proxy.MaxCandidateURLs)
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse search results: %w", app_errors.ErrTransport, err)
	}
	return urls, nil
}

// FetchText downloads pageURL and returns its extracted text, untruncated.
// Extracted text is cached per URL.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	if err := f.validatePageURL(pageURL); err != nil {
		return "", err
	}

	key := cache.Key("page", pageURL)
	if text, ok := f.cache.Get(ctx, key); ok {
		slog.Debug("Page cache hit", "url", pageURL)
		return text, nil
	}

	body, err := f.get(ctx, pageURL, timeout)
	if err != nil {
		return "", err
	}

	text := extract.Text(body)
	if text != "" {
		f.cache.Set(ctx, key, text)
	}
	return text, nil
}

func (f *Fetcher) get(ctx context.Context, target string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %w", app_errors.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: could not create request: %w", app_errors.ErrTransport, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", app_errors.ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: could not read body: %w", app_errors.ErrTransport, err)
	}
	return string(body), nil
}

func (f *Fetcher) validatePageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid URL %q", app_errors.ErrTransport, raw)
	}
	if f.allowLocal {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: refusing to fetch local host %q", app_errors.ErrTransport, host)
	}
	if ip, err := netip.ParseAddr(host); err == nil && !IsPublicAddr(ip) {
		return fmt.Errorf("%w: refusing to fetch non-public address %s", app_errors.ErrTransport, ip)
	}
	return nil
}

// IsPublicAddr reports whether ip is routable on the public internet.
func IsPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// newHTTPClient checks every dialed address, so names resolving to internal
// addresses and redirects into the local network are refused as well.
func newHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip, err := netip.ParseAddr(host)
			if err != nil || !IsPublicAddr(ip) {
				return fmt.Errorf("refusing to connect to non-public address %s", host)
			}
			return nil
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport}
}

// ParseResultLinks reads a DuckDuckGo HTML result page and returns the
// targets of its "result__a" anchors, unwrapping the "uddg" redirect
// parameter. Non-HTTP targets and duplicates are skipped.
func ParseResultLinks(r io.Reader, max int) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	urls := []string{}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(urls) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			if target := resolveResultHref(attr(n, "href")); target != "" && !seen[target] {
				seen[target] = true
				urls = append(urls, target)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return urls, nil
}

func resolveResultHref(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		u, err = url.Parse(target)
		if err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" || strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		return ""
	}
	return u.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
