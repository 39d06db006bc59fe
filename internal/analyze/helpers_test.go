package analyze

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/compiler"
	"github.com/roach88/ingestlab/internal/ir"
)

func mustBuild(t *testing.T, raw map[string]any) *ir.RuleDocument {
	t.Helper()
	doc, err := compiler.Build(raw)
	require.NoError(t, err)
	return doc
}

func textRow(resource string, kv ...string) ir.Row {
	names := make([]string, 0, len(kv)/2)
	values := make([]ir.Value, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, ir.Text(kv[i+1]))
	}
	return ir.NewRow(resource, names, values)
}

// playersDoc declares a list "players" (name, score) and a table
// "standings" (team, points).
func playersDoc(t *testing.T) *ir.RuleDocument {
	return mustBuild(t, map[string]any{
		"resources": map[string]any{
			"players": map[string]any{
				"kind":          "list",
				"selector":      "ul.players",
				"item_selector": "li",
				"fields": map[string]any{
					"name":  ".nm",
					"score": ".sc",
				},
			},
			"standings": map[string]any{
				"kind":     "table",
				"selector": "table.standings",
				"columns":  []any{"team", "points"},
			},
		},
	})
}
