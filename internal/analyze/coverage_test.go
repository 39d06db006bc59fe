package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func TestCoverage(t *testing.T) {
	rows := map[string][]ir.Row{
		"players": {
			ir.NewRow("players", []string{"name", "score"}, []ir.Value{ir.Text("Ann"), ir.Int(3)}),
			ir.NewRow("players", []string{"name", "score"}, []ir.Value{ir.Text("Bo"), ir.Null{}}),
			ir.NewRow("players", []string{"name", "score"}, []ir.Value{ir.Text("Ann"), ir.Text(" ")}),
			ir.NewRow("players", []string{"name", "score"}, []ir.Value{ir.Text("Cy"), ir.Float(3)}),
		},
	}
	mapping := Mapping{"players": {"name": "player_name"}}

	report := Coverage(playersDoc(t), rows, mapping)
	require.Len(t, report.Resources, 2)

	players := report.Resources[0]
	assert.Equal(t, "players", players.Resource)
	name, ok := players.Field("name")
	require.True(t, ok)
	assert.Equal(t, FieldStat{Field: "name", TargetColumn: "player_name", NonEmpty: 4, TotalRows: 4, Distinct: 3, CoverageRatio: 1}, name)

	score, _ := players.Field("score")
	assert.Equal(t, "score", score.TargetColumn)
	assert.Equal(t, 2, score.NonEmpty)
	assert.Equal(t, 1, score.Distinct, "3 and 3.0 share a canonical text form")
	assert.Equal(t, 0.5, score.CoverageRatio)
	assert.Equal(t, 0.75, players.AverageCoverage)
	assert.Empty(t, players.MissingColumns)

	standings := report.Resources[1]
	assert.Equal(t, "standings", standings.Resource)
	assert.Equal(t, []string{"team", "points"}, standings.MissingColumns)
	assert.Equal(t, 0.0, standings.AverageCoverage)

	assert.Equal(t, 4, report.TotalTargetColumns)
	assert.Equal(t, 6, report.TotalNonEmptyCells)
	assert.Equal(t, 8, report.TotalPossibleCells)
	assert.Equal(t, 0.75, report.OverallRatio)
	assert.Equal(t, 0.5, report.Ratio("players", "score"))
	assert.Equal(t, 0.0, report.Ratio("players", "nope"))
}

func TestCoverageNoRows(t *testing.T) {
	report := Coverage(playersDoc(t), nil, nil)
	assert.Equal(t, 0.0, report.OverallRatio)
	assert.Equal(t, 0, report.TotalPossibleCells)
}
