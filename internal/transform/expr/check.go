package expr

import (
	"fmt"
	"strings"
)

// CheckSource applies the pre-parse gates: the length cap and the forbidden
// token scan. Compile calls it; the transform engine also calls it before
// every execution.
func CheckSource(code string) error {
	if len(code) > MaxSourceLength {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrSourceRejected, len(code), MaxSourceLength)
	}
	lowered := strings.ToLower(code)
	for _, tok := range forbiddenTokens {
		if strings.Contains(lowered, tok) {
			return fmt.Errorf("%w: forbidden token %q", ErrSourceRejected, tok)
		}
	}
	return nil
}
