package transform

import (
	"fmt"
	"strings"

	"github.com/ncruces/go-strftime"

	"github.com/roach88/ingestlab/internal/ir"
)

// isoDate is the Go layout of an ISO-8601 calendar date.
const isoDate = "2006-01-02"

// ValidateDateFormats checks that every strftime format can be used for
// parsing. Unsupported directives and literals that collide with Go layout
// tokens are rejected.
func ValidateDateFormats(formats []string) error {
	for _, f := range formats {
		if _, err := strftime.Layout(f); err != nil {
			return fmt.Errorf("format %q: %w", f, err)
		}
	}
	return nil
}

// ParseDate tries each strftime format in order and returns the first match
// as an ISO date. Blank input yields ir.Null.
func ParseDate(text string, formats []string) (ir.Value, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return ir.Null{}, nil
	}
	for _, f := range formats {
		t, err := strftime.Parse(f, s)
		if err == nil {
			return ir.Date(t.Format(isoDate)), nil
		}
	}
	return nil, &Error{
		Code:    ErrCodeDateParse,
		Step:    ir.StepParseDate,
		Input:   text,
		Message: fmt.Sprintf("no format matched (tried %s)", strings.Join(formats, ", ")),
	}
}
