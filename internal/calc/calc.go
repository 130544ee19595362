// Package calc evaluates the arithmetic expressions of the /kalkulator command.
//
// Input is first reduced to digits, the four operators, parentheses, dots and
// whitespace. What remains is parsed by a small recursive-descent parser, so
// nothing outside plain arithmetic can ever be evaluated.
package calc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	app_errors "fireflies/backend/internal/errors"
)

// User-facing reasons carried by ErrEvaluation.
const (
	reasonInvalidExpression = "Invalid expression"
	reasonInvalidResult     = "Invalid calculation result"
)

// Sanitize removes every character outside [0-9 + - * / ( ) . whitespace].
func Sanitize(expression string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("+-*/().", r):
			return r
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v':
			return r
		}
		return -1
	}, expression)
}

// Evaluate sanitizes and evaluates expression. Any failure is reported as an
// error wrapping app_errors.ErrEvaluation; the function never panics.
func Evaluate(expression string) (float64, error) {
	sanitized := Sanitize(expression)
	if strings.TrimSpace(sanitized) == "" {
		return 0, fmt.Errorf("%w: %s", app_errors.ErrEvaluation, reasonInvalidExpression)
	}

	p := &parser{input: sanitized}
	value, err := p.parse()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", app_errors.ErrEvaluation, reasonInvalidExpression, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s", app_errors.ErrEvaluation, reasonInvalidResult)
	}
	return value, nil
}

// Describe returns the chat text for a failed evaluation.
func Describe(err error) string {
	if err != nil && strings.Contains(err.Error(), reasonInvalidResult) {
		return "Error: " + reasonInvalidResult
	}
	return "Error: " + reasonInvalidExpression
}

// Format renders a result the way it is shown in the chat.
func Format(value float64) string {
	if value == 0 {
		// Avoid printing "-0".
		return "0"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = ("+" | "-") unary | factor
//	factor = number | "(" expr ")"
type parser struct {
	input string
	pos   int
}

// maxDepth guards the recursion against inputs like "((((((...".
const maxDepth = 256

func (p *parser) parse() (float64, error) {
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

func (p *parser) expr(depth int) (float64, error) {
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.term(depth)
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return left, nil
		}
		p.pos++
		p.skipSpace()
		if next, ok := p.peek(); ok && (next == '*' || next == '/') {
			// "**" and "//" are not part of the grammar.
			return 0, fmt.Errorf("unexpected %q at position %d", next, p.pos)
		}
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			left /= right
		}
	}
}

func (p *parser) unary(depth int) (float64, error) {
	if depth > maxDepth {
		return 0, fmt.Errorf("expression nested too deeply")
	}
	p.skipSpace()
	op, ok := p.peek()
	if ok && (op == '+' || op == '-') {
		p.pos++
		v, err := p.unary(depth + 1)
		if err != nil {
			return 0, err
		}
		if op == '-' {
			return -v, nil
		}
		return v, nil
	}
	return p.factor(depth)
}

func (p *parser) factor(depth int) (float64, error) {
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if c == '(' {
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	return p.number()
}

func (p *parser) number() (float64, error) {
	start := p.pos
	dots := 0
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '.' {
			dots++
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	literal := p.input[start:p.pos]
	if literal == "" || literal == "." || dots > 1 {
		return 0, fmt.Errorf("invalid number at position %d", start)
	}
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", literal)
	}
	return v, nil
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}
