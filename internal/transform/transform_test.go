package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func TestApplyTrimToNumber(t *testing.T) {
	chain := []ir.TransformStep{ir.Trim{}, ir.ToNumber{}}

	out, err := Apply(ir.Text(" 1 234,5 "), chain, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.Float(1234.5), out)

	out, err = Apply(ir.Text(""), chain, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, out)
}

func TestApplyTextSteps(t *testing.T) {
	tests := []struct {
		name     string
		input    ir.Value
		steps    []ir.TransformStep
		expected ir.Value
	}{
		{"trim", ir.Text("  a b  "), []ir.TransformStep{ir.Trim{}}, ir.Text("a b")},
		{"collapse", ir.Text(" a \n\t b\u00a0 c "), []ir.TransformStep{ir.CollapseWhitespace{}}, ir.Text("a b c")},
		{"trim passes null", ir.Null{}, []ir.TransformStep{ir.Trim{}}, ir.Null{}},
		{"collapse passes null", ir.Null{}, []ir.TransformStep{ir.CollapseWhitespace{}}, ir.Null{}},
		{"trim keeps empty", ir.Text(""), []ir.TransformStep{ir.Trim{}}, ir.Text("")},
		{"trim stringifies numbers", ir.Int(5), []ir.TransformStep{ir.Trim{}}, ir.Text("5")},
		{"no steps", ir.Text(" x "), nil, ir.Text(" x ")},
		{"nil input", nil, nil, ir.Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(tt.input, tt.steps, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected ir.Value
	}{
		{"42", ir.Int(42)},
		{"-7", ir.Int(-7)},
		{"+3", ir.Int(3)},
		{"1 234", ir.Int(1234)},
		{"1\u00a0234", ir.Int(1234)},
		{"1\u2009234\u202f567", ir.Int(1234567)},
		{"1_000", ir.Int(1000)},
		{"1,5", ir.Float(1.5)},
		{"1,234.5", ir.Float(1234.5)},
		{"1,234,567", ir.Int(1234567)},
		{"3.25", ir.Float(3.25)},
		{".5", ir.Float(0.5)},
		{"1e3", ir.Float(1000)},
		{"\uff11\uff12", ir.Int(12)},
		{"   ", ir.Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := ParseNumber(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestParseNumberFailures(t *testing.T) {
	for _, input := range []string{"abc", "12abc", "1.2.3", "NaN", "Inf", "--1", "1 2 a"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseNumber(input)
			require.Error(t, err)
			code, ok := CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, ErrCodeNumericParse, code)
			assert.Contains(t, err.Error(), input)
		})
	}
}

func TestToNumberPassesNumbers(t *testing.T) {
	out, err := Apply(ir.Int(3), []ir.TransformStep{ir.ToNumber{}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(3), out)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		formats  []string
		expected ir.Value
	}{
		{"dotted", "05.03.2024", []string{"%d.%m.%Y"}, ir.Date("2024-03-05")},
		{"single digits", "5.3.2024", []string{"%d.%m.%Y"}, ir.Date("2024-03-05")},
		{"second format wins", "2024-03-05", []string{"%d.%m.%Y", "%Y-%m-%d"}, ir.Date("2024-03-05")},
		{"month name", "5 March 2024", []string{"%d %B %Y"}, ir.Date("2024-03-05")},
		{"short year", "05/03/24", []string{"%d/%m/%y"}, ir.Date("2024-03-05")},
		{"with time", "2024-03-05 14:30", []string{"%Y-%m-%d %H:%M"}, ir.Date("2024-03-05")},
		{"blank", "  ", []string{"%Y"}, ir.Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseDate(tt.input, tt.formats)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestParseDateNoMatch(t *testing.T) {
	_, err := ParseDate("31/31/2024", []string{"%d/%m/%Y", "%Y-%m-%d"})
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeDateParse, code)
}

func TestValidateDateFormats(t *testing.T) {
	require.NoError(t, ValidateDateFormats([]string{"%d.%m.%Y", "%Y-%m-%d %H:%M:%S", "%b %d, %Y"}))
	assert.Error(t, ValidateDateFormats([]string{"%d/%m/2024"}))
	assert.Error(t, ValidateDateFormats([]string{"%Y-01"}))
}

func TestExpressionDisabledAtExecution(t *testing.T) {
	_, err := Apply(ir.Text("x"), []ir.TransformStep{ir.Expression{Code: "upper(value)"}}, Options{})
	require.Error(t, err)
	code, _ := CodeOf(err)
	assert.Equal(t, ErrCodeExpressionDisabled, code)
}

func TestExpressionRunsOnNull(t *testing.T) {
	steps := []ir.TransformStep{ir.Trim{}, ir.Expression{Code: `"n/a" if value == null else value`}}
	out, err := Apply(ir.Null{}, steps, Options{AllowExpressions: true})
	require.NoError(t, err)
	assert.Equal(t, ir.Text("n/a"), out)
}

func TestExpressionChain(t *testing.T) {
	steps := []ir.TransformStep{
		ir.Trim{},
		ir.ToNumber{},
		ir.Expression{Code: "value * 2"},
	}
	out, err := Apply(ir.Text(" 21 "), steps, Options{AllowExpressions: true})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(42), out)
}

func TestExpressionRejectedAtExecution(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"forbidden token", "value.__class__"},
		{"runtime failure", "value / 0"},
		{"syntax", "value +"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(ir.Int(1), []ir.TransformStep{ir.Expression{Code: tt.code}}, Options{AllowExpressions: true})
			require.Error(t, err)
			code, ok := CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, ErrCodeExpressionExecution, code)
			assert.True(t, IsTransformError(err))
		})
	}
}

func TestChainStopsAtFirstFailure(t *testing.T) {
	steps := []ir.TransformStep{ir.ToNumber{}, ir.Expression{Code: `"unreached"`}}
	_, err := Apply(ir.Text("abc"), steps, Options{AllowExpressions: true})
	require.Error(t, err)
	code, _ := CodeOf(err)
	assert.Equal(t, ErrCodeNumericParse, code)
}
