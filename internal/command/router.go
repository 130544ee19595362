// Package command recognizes the chat commands typed into the message box.
package command

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	app_errors "fireflies/backend/internal/errors"
)

// Command is the result of routing one submitted message. It is one of
// Search, Scrape, Calculate, ClearContext, PlainChat or Usage.
type Command interface {
	// Name is a stable identifier stored with the assistant reply.
	Name() string
	isCommand()
}

// Search is "/cari <query>".
type Search struct {
	Query string
}

// Scrape is "/web <question> <url>".
type Scrape struct {
	Question string
	URL      string
}

// Calculate is "/kalkulator <expression>".
type Calculate struct {
	Expression string
}

// ClearContext is "/clear".
type ClearContext struct{}

// PlainChat is any message that is not a command.
type PlainChat struct {
	Text  string
	Image []byte
}

// Usage is returned instead of dispatching when a recognized command lacks
// its payload. Hint is shown to the user as the assistant reply.
type Usage struct {
	Command string
	Hint    string
}

func (Search) Name() string       { return "search" }
func (Scrape) Name() string       { return "web" }
func (Calculate) Name() string    { return "calculator" }
func (ClearContext) Name() string { return "clear" }
func (PlainChat) Name() string    { return "chat" }
func (Usage) Name() string        { return "usage" }

func (Search) isCommand()       {}
func (Scrape) isCommand()       {}
func (Calculate) isCommand()    {}
func (ClearContext) isCommand() {}
func (PlainChat) isCommand()    {}
func (Usage) isCommand()        {}

// Err describes the usage failure as an ErrMalformedCommand.
func (u Usage) Err() error {
	return fmt.Errorf("%w: %s", app_errors.ErrMalformedCommand, u.Command)
}

// Command prefixes.
const (
	PrefixClear      = "/clear"
	PrefixSearch     = "/cari"
	PrefixWeb        = "/web"
	PrefixCalculator = "/kalkulator"
)

// Usage hints, in the chat's working language.
const (
	HintSearch          = "Mohon masukkan kata kunci pencarian setelah /cari"
	HintWebMissingURL   = "Mohon masukkan URL yang valid. Contoh: /web ambil fungsi yang ada di web https://example.com"
	HintWebMissingQuery = "Mohon masukkan pertanyaan sebelum URL. Contoh: /web ambil fungsi yang ada di web https://example.com"
	HintCalculator      = "Mohon masukkan ekspresi matematika setelah /kalkulator (contoh: /kalkulator 2 + 2 * 5)"
)

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

type rule struct {
	prefix string
	// exact rules match only when the whole message is the prefix.
	exact bool
	parse func(payload string) Command
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{prefix: PrefixClear, exact: true, parse: func(string) Command { return ClearContext{} }},
	{prefix: PrefixSearch, parse: parseSearch},
	{prefix: PrefixWeb, parse: parseScrape},
	{prefix: PrefixCalculator, parse: parseCalculate},
}

// Route resolves message to exactly one Command. Prefixes match
// case-insensitively. A message matching no rule is plain chat, carried
// verbatim together with the optional image.
func Route(message string, image []byte) Command {
	trimmed := strings.TrimSpace(message)
	head, rest := splitHead(trimmed)

	for _, r := range rules {
		if r.exact {
			if strings.EqualFold(trimmed, r.prefix) {
				return r.parse("")
			}
			continue
		}
		if strings.EqualFold(head, r.prefix) {
			return r.parse(strings.TrimSpace(rest))
		}
	}

	return PlainChat{Text: message, Image: image}
}

func parseSearch(payload string) Command {
	if payload == "" {
		return Usage{Command: PrefixSearch, Hint: HintSearch}
	}
	return Search{Query: payload}
}

func parseScrape(payload string) Command {
	loc := urlPattern.FindStringIndex(payload)
	if loc == nil {
		return Usage{Command: PrefixWeb, Hint: HintWebMissingURL}
	}
	url := payload[loc[0]:loc[1]]
	question := strings.TrimSpace(payload[:loc[0]] + payload[loc[1]:])
	if question == "" {
		return Usage{Command: PrefixWeb, Hint: HintWebMissingQuery}
	}
	return Scrape{Question: question, URL: url}
}

func parseCalculate(payload string) Command {
	if payload == "" {
		return Usage{Command: PrefixCalculator, Hint: HintCalculator}
	}
	return Calculate{Expression: payload}
}

// splitHead splits s at its first whitespace run.
func splitHead(s string) (head, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
