package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fireflies/backend/internal/command"
	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/prompt"
	"fireflies/backend/internal/proxy"
)

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

type mockScraper struct{ mock.Mock }

func (m *mockScraper) Scrape(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context, req *proxy.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newPipeline(t *testing.T) (*Pipeline, *mockSearcher, *mockScraper, *mockGenerator) {
	t.Helper()
	s, sc, g := &mockSearcher{}, &mockScraper{}, &mockGenerator{}
	t.Cleanup(func() {
		s.AssertExpectations(t)
		sc.AssertExpectations(t)
		g.AssertExpectations(t)
	})
	return NewPipeline(s, sc, g, prompt.NewAssembler(0)), s, sc, g
}

func TestPipeline_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("answers with sources", func(t *testing.T) {
		// ARRANGE
		p, searcher, _, gen := newPipeline(t)
		results := []model.SearchResult{
			{URL: "https://a.com", Content: "cuaca cerah"},
			{URL: "https://b.com", Content: "suhu 31 derajat"},
		}
		searcher.On("Search", ctx, "jakarta weather").Return(results, nil).Once()
		gen.On("Generate", ctx, mock.MatchedBy(func(req *proxy.GenerateRequest) bool {
			return strings.Contains(req.Prompt, "WEBSITE 1: https://a.com") &&
				strings.Contains(req.Prompt, "jakarta weather") &&
				req.Model == "FireFlies:latest" && req.BaseURL == "http://ollama:11434"
		})).Return("Cerah dan panas.", nil).Once()

		// ACT
		reply, err := p.Execute(ctx, command.Search{Query: "jakarta weather"}, "FireFlies:latest", "http://ollama:11434")

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, "Cerah dan panas.\n\n📖 **Sumber:**\nhttps://a.com\nhttps://b.com", reply.Content)
		assert.Equal(t, []string{"https://a.com", "https://b.com"}, reply.Sources)
		assert.Equal(t, "search", reply.Command)
	})

	t.Run("no results skips inference", func(t *testing.T) {
		p, searcher, _, _ := newPipeline(t)
		searcher.On("Search", ctx, "q").Return([]model.SearchResult{}, fmt.Errorf("%w: none", app_errors.ErrInsufficientContent)).Once()

		reply, err := p.Execute(ctx, command.Search{Query: "q"}, "m", "")

		require.NoError(t, err)
		assert.Equal(t, SearchFailedMessage, reply.Content)
		assert.Empty(t, reply.Sources)
	})

	t.Run("inference failure keeps the sources", func(t *testing.T) {
		p, searcher, _, gen := newPipeline(t)
		searcher.On("Search", ctx, "q").Return([]model.SearchResult{{URL: "https://a.com", Content: "x"}}, nil).Once()
		gen.On("Generate", ctx, mock.Anything).Return("", errors.New("connection refused")).Once()

		reply, err := p.Execute(ctx, command.Search{Query: "q"}, "m", "")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(reply.Content, "Maaf, tidak dapat terhubung ke AI: connection refused"))
		assert.Contains(t, reply.Content, "https://a.com")
	})

	t.Run("empty answer", func(t *testing.T) {
		p, searcher, _, gen := newPipeline(t)
		searcher.On("Search", ctx, "q").Return([]model.SearchResult{{URL: "https://a.com", Content: "x"}}, nil).Once()
		gen.On("Generate", ctx, mock.Anything).Return("", nil).Once()

		reply, err := p.Execute(ctx, command.Search{Query: "q"}, "m", "")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(reply.Content, NoResponseMessage))
	})
}

func TestPipeline_Scrape(t *testing.T) {
	ctx := context.Background()

	t.Run("answers with inline source", func(t *testing.T) {
		p, _, scraper, gen := newPipeline(t)
		scraper.On("Scrape", ctx, "https://a.com").Return("isi halaman yang panjang", nil).Once()
		gen.On("Generate", ctx, mock.MatchedBy(func(req *proxy.GenerateRequest) bool {
			return strings.Contains(req.Prompt, "--- KONTEN WEBSITE ---\nisi halaman yang panjang") &&
				strings.Contains(req.Prompt, "ringkas")
		})).Return("Ringkasan.", nil).Once()

		reply, err := p.Execute(ctx, command.Scrape{Question: "ringkas", URL: "https://a.com"}, "m", "")

		require.NoError(t, err)
		assert.Equal(t, "Ringkasan.\n\n🌐 **Sumber:** https://a.com", reply.Content)
		assert.Equal(t, "web", reply.Command)
	})

	t.Run("unusable page", func(t *testing.T) {
		p, _, scraper, _ := newPipeline(t)
		scraper.On("Scrape", ctx, "https://a.com").Return("", fmt.Errorf("%w: 404", app_errors.ErrTransport)).Once()

		reply, err := p.Execute(ctx, command.Scrape{Question: "q", URL: "https://a.com"}, "m", "")

		require.NoError(t, err)
		assert.Equal(t, ScrapeFailedMessage, reply.Content)
	})
}

func TestPipeline_Calculate(t *testing.T) {
	ctx := context.Background()

	t.Run("result with explanation", func(t *testing.T) {
		p, _, _, gen := newPipeline(t)
		gen.On("Generate", ctx, mock.MatchedBy(func(req *proxy.GenerateRequest) bool {
			return strings.Contains(req.Prompt, "2 + 2 * 5 = 12")
		})).Return("Perkalian dulu.", nil).Once()

		reply, err := p.Execute(ctx, command.Calculate{Expression: "2 + 2 * 5"}, "m", "")

		require.NoError(t, err)
		assert.Equal(t, "🔢 **Hasil Perhitungan:**\n\n2 + 2 * 5 = **12**\n\n📝 **Penjelasan:**\nPerkalian dulu.", reply.Content)
	})

	t.Run("explanation failure", func(t *testing.T) {
		p, _, _, gen := newPipeline(t)
		gen.On("Generate", ctx, mock.Anything).Return("", errors.New("down")).Once()

		reply, err := p.Execute(ctx, command.Calculate{Expression: "1+1"}, "m", "")

		require.NoError(t, err)
		assert.Contains(t, reply.Content, "= **2**")
		assert.Contains(t, reply.Content, ExplanationFailedMessage)
	})

	t.Run("invalid expression skips inference", func(t *testing.T) {
		p, _, _, _ := newPipeline(t)

		reply, err := p.Execute(ctx, command.Calculate{Expression: "DROP TABLE x"}, "m", "")

		require.NoError(t, err)
		assert.Equal(t, "🔢 **Hasil Perhitungan:**\n\nDROP TABLE x = **Error: Invalid expression**", reply.Content)
	})

	t.Run("division by zero", func(t *testing.T) {
		p, _, _, _ := newPipeline(t)

		reply, err := p.Execute(ctx, command.Calculate{Expression: "5/0"}, "m", "")

		require.NoError(t, err)
		assert.Contains(t, reply.Content, "Error: Invalid calculation result")
	})
}

func TestPipeline_LocalCommands(t *testing.T) {
	ctx := context.Background()
	p, _, _, _ := newPipeline(t)

	reply, err := p.Execute(ctx, command.ClearContext{}, "m", "")
	require.NoError(t, err)
	assert.Equal(t, ClearedMessage, reply.Content)
	assert.True(t, reply.ContextReset)
	assert.True(t, reply.Metadata().ContextReset)

	reply, err = p.Execute(ctx, command.Usage{Command: command.PrefixSearch, Hint: command.HintSearch}, "m", "")
	require.NoError(t, err)
	assert.Equal(t, command.HintSearch, reply.Content)
	assert.Equal(t, "usage", reply.Command)

	_, err = p.Execute(ctx, command.PlainChat{Text: "hai"}, "m", "")
	assert.ErrorIs(t, err, app_errors.ErrValidation)
	assert.False(t, Handles(command.PlainChat{}))
	assert.True(t, Handles(command.Search{}))
}

func TestPipeline_Cancelled(t *testing.T) {
	p, searcher, _, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	searcher.On("Search", mock.Anything, "q").Run(func(mock.Arguments) { cancel() }).
		Return([]model.SearchResult{}, context.Canceled).Once()

	_, err := p.Execute(ctx, command.Search{Query: "q"}, "m", "")

	assert.ErrorIs(t, err, context.Canceled)
}
