package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/compiler"
	"github.com/roach88/ingestlab/internal/ir"
)

// matchesDoc declares a list "matches" whose fields exercise every inferred
// type and a table "scores" with columns a and b.
func matchesDoc(t *testing.T) *ir.RuleDocument {
	t.Helper()
	doc, err := compiler.Build(map[string]any{
		"resources": map[string]any{
			"matches": map[string]any{
				"kind":          "list",
				"selector":      "div.matches",
				"item_selector": ".match",
				"fields": map[string]any{
					"home":  map[string]any{"selector": ".home", "transforms": []any{"trim"}},
					"score": map[string]any{"selector": ".score", "transforms": []any{"trim", "to_number"}},
					"date": map[string]any{
						"selector": ".date",
						"transforms": []any{
							map[string]any{"kind": "parse_date", "formats": []any{"%d.%m.%Y"}},
						},
					},
				},
			},
			"scores": map[string]any{
				"kind":     "table",
				"selector": "table.scores",
				"columns":  []any{"a", "b"},
			},
		},
	})
	require.NoError(t, err)
	return doc
}
