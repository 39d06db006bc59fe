package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func coverageWithEmptyName(t *testing.T) *CoverageReport {
	rows := map[string][]ir.Row{
		"players": {
			textRow("players", "name", "Ann", "score", "1"),
			textRow("players", "name", "", "score", "2"),
		},
	}
	return Coverage(playersDoc(t), rows, nil)
}

func TestParseGates(t *testing.T) {
	gates, err := ParseGates(map[string]any{
		"players.name": 0.5,
		"standings":    map[string]any{"team": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, Gates{
		{Resource: "players", Field: "name", Threshold: 0.5},
		{Resource: "standings", Field: "team", Threshold: 1},
	}, gates)
	assert.Equal(t, []string{"players", "standings"}, gates.Resources())

	_, err = ParseGates(map[string]any{"players.name": 2})
	require.Error(t, err)

	none, err := ParseGates(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGatesMerge(t *testing.T) {
	base := Gates{{Resource: "a", Field: "x", Threshold: 0.1}, {Resource: "b", Field: "y", Threshold: 0.2}}
	override := Gates{{Resource: "a", Field: "x", Threshold: 0.9}}
	assert.Equal(t, Gates{
		{Resource: "a", Field: "x", Threshold: 0.9},
		{Resource: "b", Field: "y", Threshold: 0.2},
	}, base.Merge(override))
}

func TestEvaluateGatesFullThresholdFailsOnAnyEmpty(t *testing.T) {
	report := EvaluateGates(coverageWithEmptyName(t), Gates{{Resource: "players", Field: "name", Threshold: 1}})
	assert.False(t, report.Passed)
	assert.Equal(t, 1, report.FailedCount)
	assert.Equal(t, 0.5, report.Results[0].Ratio)
}

func TestEvaluateGatesZeroThresholdAlwaysPasses(t *testing.T) {
	gates := Gates{
		{Resource: "players", Field: "name", Threshold: 0},
		{Resource: "standings", Field: "team", Threshold: 0},
		{Resource: "ghost", Field: "field", Threshold: 0},
	}
	report := EvaluateGates(coverageWithEmptyName(t), gates)
	assert.True(t, report.Passed)
	assert.Zero(t, report.FailedCount)
	assert.Len(t, report.Results, 3)
}

func TestEvaluateGatesMixed(t *testing.T) {
	gates := Gates{
		{Resource: "players", Field: "score", Threshold: 1},
		{Resource: "players", Field: "name", Threshold: 0.6},
		{Resource: "players", Field: "missing", Threshold: 0.1},
	}
	report := EvaluateGates(coverageWithEmptyName(t), gates)

	assert.False(t, report.Passed)
	assert.Equal(t, 2, report.FailedCount)
	assert.Equal(t, []GateResult{
		{Resource: "players", Field: "missing", Threshold: 0.1, Ratio: 0, Passed: false},
		{Resource: "players", Field: "name", Threshold: 0.6, Ratio: 0.5, Passed: false},
		{Resource: "players", Field: "score", Threshold: 1, Ratio: 1, Passed: true},
	}, report.Results)
}

func TestEvaluateGatesEmptyPasses(t *testing.T) {
	report := EvaluateGates(coverageWithEmptyName(t), nil)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Results)
}
