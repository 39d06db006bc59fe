package analyze

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func coercionDoc(t *testing.T) *ir.RuleDocument {
	return mustBuild(t, map[string]any{
		"resources": map[string]any{
			"players": map[string]any{
				"kind":          "list",
				"selector":      "ul.players",
				"item_selector": "li",
				"fields": map[string]any{
					"score": map[string]any{"selector": ".sc", "transforms": []any{"trim", "to_number"}},
					"name":  ".nm",
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

func TestCoercionPreview(t *testing.T) {
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i)
	}
	samples := RawSamples{
		"players": {
			"name":  names,
			"score": {" 3 ", "abc", "4,5", "x", "abc"},
			"ghost": {"ignored"},
		},
		"standings": {"points": {"10", "n/a"}},
		"unknown":   {"a": {"b"}},
	}

	report := CoercionPreview(coercionDoc(t), samples)

	var order []string
	for _, f := range report.Fields {
		order = append(order, f.Resource+"."+f.Field)
	}
	assert.Equal(t, []string{"players.name", "players.score", "standings.team", "standings.points"}, order)

	name, ok := report.Field("players", "name")
	require.True(t, ok)
	assert.Equal(t, 10, name.Total)
	assert.Equal(t, 10, name.Success)
	assert.Len(t, name.CoercedSamples, MaxCoercedSamples)
	assert.Equal(t, ir.Text("p0"), name.CoercedSamples[0])

	score, _ := report.Field("players", "score")
	assert.Equal(t, 5, score.Total)
	assert.Equal(t, 2, score.Success)
	assert.Equal(t, 3, score.Failures)
	assert.Equal(t, []ir.Value{ir.Int(3), ir.Float(4.5)}, score.CoercedSamples)
	require.Len(t, score.Errors, 2, "repeated messages are kept once")
	assert.Contains(t, score.Errors[0], `"abc"`)
	assert.Contains(t, score.Errors[1], `"x"`)

	team, _ := report.Field("standings", "team")
	assert.Equal(t, 0, team.Total)
	assert.Empty(t, team.CoercedSamples)

	points, _ := report.Field("standings", "points")
	assert.Equal(t, 2, points.Success)
	assert.Equal(t, []ir.Value{ir.Text("10"), ir.Text("n/a")}, points.CoercedSamples)

	assert.Equal(t, 3, report.Failures())
}

func TestCoercionPreviewCapsErrors(t *testing.T) {
	raw := make([]string, 0, 7)
	for i := range 7 {
		raw = append(raw, fmt.Sprintf("bad%d", i))
	}
	report := CoercionPreview(coercionDoc(t), RawSamples{"players": {"score": raw}})

	score, _ := report.Field("players", "score")
	assert.Equal(t, 7, score.Failures)
	assert.Len(t, score.Errors, MaxCoercionErrors)
}

func TestCoercionPreviewRunsExpressions(t *testing.T) {
	doc := mustBuild(t, map[string]any{
		"allow_expressions": true,
		"resources": map[string]any{
			"players": map[string]any{
				"kind":          "list",
				"selector":      "ul",
				"item_selector": "li",
				"fields": map[string]any{
					"score": map[string]any{
						"selector":   ".sc",
						"transforms": []any{"to_number", map[string]any{"kind": "expr", "code": "round(value, 15)"}},
					},
				},
			},
		},
	})

	score, ok := CoercionPreview(doc, RawSamples{"players": {"score": {"2.5", "1e300"}}}).Field("players", "score")
	require.True(t, ok)
	assert.Equal(t, 1, score.Success)
	require.Len(t, score.CoercedSamples, 1)
	assert.Equal(t, "2.5", score.CoercedSamples[0].String())
	assert.Equal(t, 1, score.Failures)
	require.Len(t, score.Errors, 1)
	assert.Contains(t, score.Errors[0], "not a finite number")
}

func TestSamplesFromRows(t *testing.T) {
	rows := map[string][]ir.Row{
		"players": {
			textRow("players", "name", "Ann", "score", "3"),
			ir.NewRow("players", []string{"name", "score"}, []ir.Value{ir.Text("Bo"), ir.Null{}}),
		},
	}
	samples := SamplesFromRows(rows)
	assert.Equal(t, RawSamples{"players": {"name": {"Ann", "Bo"}, "score": {"3", ""}}}, samples)
}
