// Package prompt assembles retrieved content and the user's question into a
// single bounded instruction for the inference call, and formats the answers.
package prompt

import (
	"fmt"
	"strings"

	"fireflies/backend/internal/extract"
	"fireflies/backend/internal/model"
)

// Content bounds. Sources are truncated here again so a misbehaving proxy
// cannot grow the prompt.
const (
	MaxSearchSourceChars   = 2000
	MaxScrapeChars         = 5000
	DefaultMaxContextChars = 8000
)

const searchTemplate = `Berdasarkan konten dari website yang telah diunduh berikut, berikan jawaban yang informatif dan lengkap atas pertanyaan pengguna. Jawab dalam Bahasa Indonesia, akurat, dan hanya berdasarkan konten yang diberikan.

%s
--- PERTANYAAN PENGGUNA ---
%s

Berikan jawaban yang informatif dan lengkap berdasarkan konten website di atas:`

const scrapeTemplate = `Berdasarkan konten website berikut, jawab pertanyaan pengguna secara langsung dan detail. Jawab dalam Bahasa Indonesia.

--- KONTEN WEBSITE ---
%s

--- PERTANYAAN PENGGUNA ---
%s

Jawab berdasarkan konten website:`

const calculatorTemplate = `Pengguna melakukan perhitungan: %s = %s. Berikan penjelasan singkat tentang perhitungan ini dalam Bahasa Indonesia, termasuk langkah-langkah jika perlu.`

// Assembler builds prompts with an overall cap on retrieved content.
type Assembler struct {
	maxContextChars int
}

// NewAssembler returns an Assembler; a non-positive cap selects the default.
func NewAssembler(maxContextChars int) *Assembler {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Assembler{maxContextChars: maxContextChars}
}

// BuildSearchPrompt numbers every result under a "WEBSITE i: url" header and
// wraps them with the question. Each source is cut to MaxSearchSourceChars and
// the sum of all sources never exceeds the assembler's cap.
func (a *Assembler) BuildSearchPrompt(results []model.SearchResult, question string) string {
	var sb strings.Builder
	budget := a.maxContextChars

	for i, r := range results {
		if budget <= 0 {
			break
		}
		content := extract.Truncate(r.Content, MaxSearchSourceChars)
		content = extract.Truncate(content, budget)
		budget -= extract.Length(content)

		fmt.Fprintf(&sb, "\n--- WEBSITE %d: %s ---\n%s\n\n", i+1, r.URL, content)
	}

	return fmt.Sprintf(searchTemplate, sb.String(), question)
}

// BuildScrapePrompt wraps a single page's content with the question.
func (a *Assembler) BuildScrapePrompt(content, question string) string {
	limit := MaxScrapeChars
	if a.maxContextChars < limit {
		limit = a.maxContextChars
	}
	return fmt.Sprintf(scrapeTemplate, extract.Truncate(content, limit), question)
}

// BuildCalculatorPrompt asks the model to explain a computed result.
func BuildCalculatorPrompt(expression, result string) string {
	return fmt.Sprintf(calculatorTemplate, expression, result)
}

// FormatSearchAnswer appends the sources section, one URL per line.
func FormatSearchAnswer(answer string, urls []string) string {
	return fmt.Sprintf("%s\n\n📖 **Sumber:**\n%s", answer, strings.Join(urls, "\n"))
}

// FormatScrapeAnswer appends the single source inline.
func FormatScrapeAnswer(answer, url string) string {
	return fmt.Sprintf("%s\n\n🌐 **Sumber:** %s", answer, url)
}

// FormatCalculation renders a calculator result, or its error text.
func FormatCalculation(expression, result string) string {
	return fmt.Sprintf("🔢 **Hasil Perhitungan:**\n\n%s = **%s**", expression, result)
}

// AppendExplanation adds the model's explanation under a calculation.
func AppendExplanation(calculation, explanation string) string {
	return fmt.Sprintf("%s\n\n📝 **Penjelasan:**\n%s", calculation, explanation)
}
