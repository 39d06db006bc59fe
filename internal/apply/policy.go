package apply

import (
	"fmt"
	"sort"

	"github.com/roach88/ingestlab/internal/ir"
)

// Policy restricts which rule payloads may be simulated.
type Policy struct {
	// DisallowExpressions rejects any payload containing an expression
	// transform, even when the document enables expressions.
	DisallowExpressions bool `json:"disallow_expressions" yaml:"disallow_expressions"`
}

// Check enforces the policy against the built document and the raw payload.
// The raw payload is scanned as well so that a transform hidden from the
// built document (for example by a later override) is still caught.
func (p Policy) Check(doc *ir.RuleDocument, raw map[string]any) error {
	if !p.DisallowExpressions {
		return nil
	}
	if doc != nil && doc.HasExpressions() {
		return &SecurityPolicyError{Source: "document"}
	}
	if path, ok := findExpression(raw, ""); ok {
		return &SecurityPolicyError{Source: "payload", Path: path}
	}
	return nil
}

// findExpression walks v depth first, map keys in sorted order, and returns
// the path of the first map whose kind is "expr".
func findExpression(v any, path string) (string, bool) {
	switch val := v.(type) {
	case map[string]any:
		if kind, ok := val["kind"].(string); ok && kind == string(ir.StepExpression) {
			if path == "" {
				path = "$"
			}
			return path, true
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			if p, ok := findExpression(val[k], child); ok {
				return p, true
			}
		}
	case []any:
		for i, item := range val {
			if p, ok := findExpression(item, fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
	}
	return "", false
}
