package transform

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ingestlab/internal/ir"
)

var (
	intPattern   = regexp.MustCompile(`^[-+]?\d+$`)
	floatPattern = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
)

// ParseNumber parses localized numeric text.
//
// Normalization, in order:
//   - NFKC folding (no-break and thin spaces become spaces, full-width
//     digits become ASCII)
//   - whitespace and underscores between two digits are removed
//   - a comma with no dot present is a decimal comma; otherwise commas are
//     thousands separators and are dropped
//
// Integers yield ir.Int, everything else ir.Float. Blank input yields ir.Null.
func ParseNumber(text string) (ir.Value, error) {
	s := strings.TrimSpace(norm.NFKC.String(text))
	if s == "" {
		return ir.Null{}, nil
	}

	s = dropDigitSeparators(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if intPattern.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ir.Int(n), nil
		}
	}
	if floatPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return ir.Float(f), nil
		}
	}
	return nil, &Error{
		Code:    ErrCodeNumericParse,
		Step:    ir.StepToNumber,
		Input:   text,
		Message: "not a number",
	}
}

// dropDigitSeparators removes runs of whitespace or underscores that sit
// between two digits: "1 234 567" and "1_000" become "1234567" and "1000".
func dropDigitSeparators(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if isSeparator(r) && i > 0 && unicode.IsDigit(runes[i-1]) {
			j := i
			for j < len(runes) && isSeparator(runes[j]) {
				j++
			}
			if j < len(runes) && unicode.IsDigit(runes[j]) {
				i = j - 1
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSeparator(r rune) bool {
	return r == '_' || unicode.IsSpace(r)
}
