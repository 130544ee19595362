// Package rag executes the retrieval commands: it fetches content, assembles
// the prompt, calls the model and formats the final chat reply. Failures of
// any external call end up as a user-facing message, never as an error.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"fireflies/backend/internal/calc"
	"fireflies/backend/internal/command"
	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/prompt"
	"fireflies/backend/internal/proxy"
)

// Replies for absorbed failures.
const (
	ClearedMessage           = "🧹 **Memory Cleared!** Context has been reset."
	SearchFailedMessage      = "❌ Maaf, saya tidak menemukan hasil yang relevan di internet."
	ScrapeFailedMessage      = "❌ Maaf, saya tidak dapat mengakses atau memproses konten dari URL tersebut."
	NoResponseMessage        = "Maaf, tidak ada respons dari AI."
	ExplanationFailedMessage = "Maaf, tidak dapat memberikan penjelasan saat ini."
	inferenceFailedFormat    = "Maaf, tidak dapat terhubung ke AI: %s"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, req *proxy.GenerateRequest) (string, error)
}

// Reply is the final assistant message of a command.
type Reply struct {
	Content      string
	Sources      []string
	Command      string
	ContextReset bool
}

// Metadata returns the message metadata stored with the reply.
func (r Reply) Metadata() model.MessageMetadata {
	return model.MessageMetadata{Command: r.Command, Sources: r.Sources, ContextReset: r.ContextReset}
}

type Pipeline struct {
	searcher  Searcher
	scraper   Scraper
	generator Generator
	prompts   *prompt.Assembler
}

func NewPipeline(searcher Searcher, scraper Scraper, generator Generator, prompts *prompt.Assembler) *Pipeline {
	if prompts == nil {
		prompts = prompt.NewAssembler(0)
	}
	return &Pipeline{searcher: searcher, scraper: scraper, generator: generator, prompts: prompts}
}

// Handles reports whether Execute accepts cmd. Plain chat goes to the
// session controller instead.
func Handles(cmd command.Command) bool {
	_, plain := cmd.(command.PlainChat)
	return !plain
}

// Execute runs cmd against modelName on the inference server at baseURL.
// The only error it returns is the context's, when ctx ends mid-way.
func (p *Pipeline) Execute(ctx context.Context, cmd command.Command, modelName, baseURL string) (Reply, error) {
	var reply Reply
	switch c := cmd.(type) {
	case command.Search:
		reply = p.search(ctx, c, modelName, baseURL)
	case command.Scrape:
		reply = p.scrape(ctx, c, modelName, baseURL)
	case command.Calculate:
		reply = p.calculate(ctx, c, modelName, baseURL)
	case command.ClearContext:
		reply = Reply{Content: ClearedMessage, ContextReset: true}
	case command.Usage:
		slog.Debug("Command without payload", "command", c.Command, "error", c.Err())
		reply = Reply{Content: c.Hint}
	default:
		return Reply{}, fmt.Errorf("%w: %s is not a retrieval command", app_errors.ErrValidation, cmd.Name())
	}

	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	reply.Command = cmd.Name()
	return reply, nil
}

func (p *Pipeline) search(ctx context.Context, c command.Search, modelName, baseURL string) Reply {
	results, err := p.searcher.Search(ctx, c.Query)
	if len(results) == 0 {
		slog.Warn("Search yielded no usable pages", "query", c.Query, "error", err)
		return Reply{Content: SearchFailedMessage}
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}

	answer := p.infer(ctx, p.prompts.BuildSearchPrompt(results, c.Query), modelName, baseURL)
	return Reply{Content: prompt.FormatSearchAnswer(answer, urls), Sources: urls}
}

func (p *Pipeline) scrape(ctx context.Context, c command.Scrape, modelName, baseURL string) Reply {
	content, err := p.scraper.Scrape(ctx, c.URL)
	if err != nil || content == "" {
		slog.Warn("Scrape yielded no usable content", "url", c.URL, "error", err)
		return Reply{Content: ScrapeFailedMessage}
	}

	answer := p.infer(ctx, p.prompts.BuildScrapePrompt(content, c.Question), modelName, baseURL)
	return Reply{Content: prompt.FormatScrapeAnswer(answer, c.URL), Sources: []string{c.URL}}
}

func (p *Pipeline) calculate(ctx context.Context, c command.Calculate, modelName, baseURL string) Reply {
	value, err := calc.Evaluate(c.Expression)
	if err != nil {
		slog.Info("Calculator rejected expression", "expression", c.Expression, "error", err)
		return Reply{Content: prompt.FormatCalculation(c.Expression, calc.Describe(err))}
	}

	result := calc.Format(value)
	text := prompt.FormatCalculation(c.Expression, result)

	explanation, err := p.generator.Generate(ctx, &proxy.GenerateRequest{
		Prompt:  prompt.BuildCalculatorPrompt(c.Expression, result),
		Model:   modelName,
		BaseURL: baseURL,
	})
	switch {
	case err != nil:
		slog.Warn("Calculator explanation failed", "expression", c.Expression, "error", err)
		explanation = ExplanationFailedMessage
	case explanation == "":
		explanation = NoResponseMessage
	}
	return Reply{Content: prompt.AppendExplanation(text, explanation)}
}

// infer runs one inference call and turns failures into the reply text.
func (p *Pipeline) infer(ctx context.Context, promptText, modelName, baseURL string) string {
	answer, err := p.generator.Generate(ctx, &proxy.GenerateRequest{Prompt: promptText, Model: modelName, BaseURL: baseURL})
	if err != nil {
		slog.Warn("Inference failed", "model", modelName, "error", err)
		return fmt.Sprintf(inferenceFailedFormat, err.Error())
	}
	if answer == "" {
		return NoResponseMessage
	}
	return answer
}
