package analyze

import (
	"errors"
	"fmt"
)

// ErrNoDocuments is returned by operations that need at least one document.
var ErrNoDocuments = errors.New("at least one document is required")

// AssertionError reports a malformed assertion spec.
type AssertionError struct {
	Index   int
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %d: %s", e.Index, e.Message)
}
