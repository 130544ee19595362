package calc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "fireflies/backend/internal/errors"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 2 * 5", 12},
		{"(2 + 2) * 5", 20},
		{"10 / 4", 2.5},
		{"10 - 4 - 3", 3},
		{"100 / 10 / 5", 2},
		{"-3 + 5", 2},
		{"2 * -3", -6},
		{"-(2 + 3) * 2", -10},
		{".5 + 5.", 5.5},
		{"  7  ", 7},
		// Letters are stripped before parsing.
		{"hitung 3*4 ya", 12},
		// So are caret and percent, which leaves the digits adjacent.
		{"2^3", 23},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		reason string
	}{
		{"division by zero is not finite", "5/0", reasonInvalidResult},
		{"zero over zero", "0/0", reasonInvalidResult},
		{"letters only sanitize to nothing", "DROP TABLE x", reasonInvalidExpression},
		{"empty", "", reasonInvalidExpression},
		{"unbalanced open paren", "(2 + 3", reasonInvalidExpression},
		{"unbalanced close paren", "2 + 3)", reasonInvalidExpression},
		{"dangling operator", "2 +", reasonInvalidExpression},
		{"two numbers", "2 3", reasonInvalidExpression},
		{"exponent operator is not supported", "2**3", reasonInvalidExpression},
		{"percent is stripped, leaving two numbers", "10 % 3", reasonInvalidExpression},
		{"double dot", "1.2.3", reasonInvalidExpression},
		{"lone dot", ".", reasonInvalidExpression},
		{"too deep", strings.Repeat("(", 1000) + "1" + strings.Repeat(")", 1000), reasonInvalidExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.expr)
			require.Error(t, err)
			assert.ErrorIs(t, err, app_errors.ErrEvaluation)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "  ", Sanitize("DROP TABLE x"))
	assert.Equal(t, "(1+2)*3/4-5.5", Sanitize("(1+2)*3/4-5.5"))
	assert.Equal(t, "()", Sanitize("alert();"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12", Format(12))
	assert.Equal(t, "2.5", Format(2.5))
	assert.Equal(t, "0", Format(-0.0))
	assert.Equal(t, "-6", Format(-6))
}

func TestDescribe(t *testing.T) {
	_, err := Evaluate("5/0")
	assert.Equal(t, "Error: Invalid calculation result", Describe(err))

	_, err = Evaluate("abc")
	assert.Equal(t, "Error: Invalid expression", Describe(err))
}
