package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fireflies/backend/internal/api"
	"fireflies/backend/internal/llm"
	"fireflies/backend/internal/proxy"
)

type fakePages struct {
	queries []string
	urls    []string
}

func (f *fakePages) Search(_ context.Context, query string) proxy.SearchResponse {
	f.queries = append(f.queries, query)
	return proxy.SearchResponse{
		URLs:            []string{"https://a.com"},
		URLsWithContent: []proxy.PageResult{{URL: "https://a.com", Content: "alpha", Success: true}},
	}
}

func (f *fakePages) Scrape(_ context.Context, url string) proxy.WebResponse {
	f.urls = append(f.urls, url)
	content := "isi halaman"
	return proxy.WebResponse{Content: &content, Success: true}
}

// newOllama fakes /api/generate, /api/chat and /api/tags and records the last
// inference body with its path.
func newOllama(t *testing.T, gotPath *string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"FireFlies:latest","model":"FireFlies:latest","modified_at":"2025-05-01T10:00:00Z","size":7}]}`))
		case "/api/generate":
			*gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(gotBody))
			_, _ = w.Write([]byte(`{"model":"m","response":"dari generate","done":true}`))
		case "/api/chat":
			*gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(gotBody))
			_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"dari chat"},"done":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func postProxy(t *testing.T, handler *api.ProxyHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.HandleProxy(rr, httptest.NewRequest(http.MethodPost, "/api/v1/proxy", strings.NewReader(body)))
	return rr
}

func TestProxyHandler_Search(t *testing.T) {
	pages := &fakePages{}
	handler := api.NewProxyHandler(pages, llm.NewFactory("http://unused"), "FireFlies:latest")

	rr := postProxy(t, handler, `{"action":"search","query":"  cuaca jakarta "}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"cuaca jakarta"}, pages.queries)
	var resp proxy.SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.URLsWithContent, 1)
	assert.Equal(t, "alpha", resp.URLsWithContent[0].Content)

	rr = postProxy(t, handler, `{"action":"search"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProxyHandler_Web(t *testing.T) {
	pages := &fakePages{}
	handler := api.NewProxyHandler(pages, llm.NewFactory("http://unused"), "FireFlies:latest")

	rr := postProxy(t, handler, `{"action":"web","url":"https://a.com"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"https://a.com"}, pages.urls)
	assert.JSONEq(t, `{"content":"isi halaman","success":true}`, rr.Body.String())

	rr = postProxy(t, handler, `{"action":"web"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProxyHandler_GetModels(t *testing.T) {
	var path string
	var body map[string]any
	ollama := newOllama(t, &path, &body)
	handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory("http://unused"), "FireFlies:latest")

	rr := postProxy(t, handler, `{"action":"get_models","baseUrl":"`+ollama.URL+`"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp proxy.ModelsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Models, 1)
	assert.Equal(t, "FireFlies:latest", resp.Models[0].Name)
	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339), resp.Models[0].ModifiedAt)
}

func TestProxyHandler_Generate(t *testing.T) {
	t.Run("prompt only uses generate with the default model", func(t *testing.T) {
		var path string
		var body map[string]any
		ollama := newOllama(t, &path, &body)
		handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory(ollama.URL), "FireFlies:latest")

		rr := postProxy(t, handler, `{"prompt":"halo"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"response":"dari generate"}`, rr.Body.String())
		assert.Equal(t, "/api/generate", path)
		assert.Equal(t, "FireFlies:latest", body["model"])
		assert.Equal(t, "halo", body["prompt"])
		assert.Equal(t, false, body["stream"])
	})

	t.Run("history uses chat with the prompt as last turn", func(t *testing.T) {
		var path string
		var body map[string]any
		ollama := newOllama(t, &path, &body)
		handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory("http://unused"), "FireFlies:latest")

		rr := postProxy(t, handler, `{"prompt":"lanjut","model":"gemma3:4b","baseUrl":"`+ollama.URL+`",
			"history":[{"role":"user","content":"halo"},{"role":"assistant","content":"hai"}]}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"response":"dari chat"}`, rr.Body.String())
		assert.Equal(t, "/api/chat", path)
		messages := body["messages"].([]any)
		require.Len(t, messages, 3)
		last := messages[2].(map[string]any)
		assert.Equal(t, "user", last["role"])
		assert.Equal(t, "lanjut", last["content"])
	})

	t.Run("image goes to generate without prompt", func(t *testing.T) {
		var path string
		var body map[string]any
		ollama := newOllama(t, &path, &body)
		handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory(ollama.URL), "FireFlies:latest")

		rr := postProxy(t, handler, `{"action":"generate","model":"gemma3:4b","image":"aGVsbG8="}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "/api/generate", path)
		assert.Equal(t, []any{"aGVsbG8="}, body["images"])
		assert.Contains(t, body["prompt"], "Describe this image")
	})

	t.Run("missing prompt", func(t *testing.T) {
		handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory("http://unused"), "FireFlies:latest")

		rr := postProxy(t, handler, `{"prompt":"  "}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()
		handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory(addr), "FireFlies:latest")

		rr := postProxy(t, handler, `{"prompt":"halo"}`)

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		var resp proxy.GenerateResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	})
}

func TestProxyHandler_UnknownAction(t *testing.T) {
	handler := api.NewProxyHandler(&fakePages{}, llm.NewFactory("http://unused"), "FireFlies:latest")

	assert.Equal(t, http.StatusBadRequest, postProxy(t, handler, `{"action":"delete"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postProxy(t, handler, `{`).Code)
}
