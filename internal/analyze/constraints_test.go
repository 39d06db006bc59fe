package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func clubsDoc(t *testing.T) *ir.RuleDocument {
	return mustBuild(t, map[string]any{
		"resources": map[string]any{
			"clubs": map[string]any{
				"kind": "table", "selector": "table.clubs", "columns": []any{"id", "name"},
			},
			"players": map[string]any{
				"kind": "list", "selector": "ul", "item_selector": "li",
				"fields": map[string]any{"id": ".id", "club_id": ".club", "name": ".nm"},
			},
		},
	})
}

func TestSimulateConstraints(t *testing.T) {
	samples := map[string][]ir.Row{
		"clubs": {
			textRow("clubs", "id", "1", "name", "Reds"),
			textRow("clubs", "id", "2", "name", "Blues"),
			textRow("clubs", "id", "2", "name", "Blues B"),
		},
		"players": {
			ir.NewRow("players", []string{"club_id", "id", "name"}, []ir.Value{ir.Int(1), ir.Text("p1"), ir.Text("Ann")}),
			ir.NewRow("players", []string{"club_id", "id", "name"}, []ir.Value{ir.Text("9"), ir.Text("p2"), ir.Text("Bo")}),
			ir.NewRow("players", []string{"club_id", "id", "name"}, []ir.Value{ir.Null{}, ir.Text("p1"), ir.Text("Cy")}),
		},
	}

	report := SimulateConstraints(clubsDoc(t), samples)
	require.True(t, report.HasIssues())
	assert.Equal(t, 2, report.Count(IssueUniqueViolation))
	assert.Equal(t, 1, report.Count(IssueOrphan))

	assert.Equal(t, ConstraintIssue{
		Kind:       IssueUniqueViolation,
		Resource:   "clubs",
		Column:     "id",
		Value:      "2",
		RowIndexes: []int{1, 2},
		Message:    `duplicate value "2" in column "id" of clubs`,
	}, report.Issues[0])

	assert.Equal(t, "players", report.Issues[1].Resource)
	assert.Equal(t, "p1", report.Issues[1].Value)
	assert.Equal(t, []int{0, 2}, report.Issues[1].RowIndexes)

	orphan := report.Issues[2]
	assert.Equal(t, IssueOrphan, orphan.Kind)
	assert.Equal(t, "club_id", orphan.Column)
	assert.Equal(t, "9", orphan.Value)
	assert.Equal(t, "clubs", orphan.Referenced)
	assert.Equal(t, []int{1}, orphan.RowIndexes)
}

func TestSimulateConstraintsClean(t *testing.T) {
	samples := map[string][]ir.Row{
		"clubs":   {textRow("clubs", "id", "1", "name", "Reds")},
		"players": {textRow("players", "club_id", "1", "id", "p1", "name", "Ann")},
	}
	report := SimulateConstraints(clubsDoc(t), samples)
	assert.False(t, report.HasIssues())
	assert.NotNil(t, report.Issues)
}

func TestSimulateConstraintsParentWithoutID(t *testing.T) {
	doc := mustBuild(t, map[string]any{
		"resources": map[string]any{
			"team": map[string]any{
				"kind": "table", "selector": "table.team", "columns": []any{"name"},
			},
			"players": map[string]any{
				"kind": "table", "selector": "table.p", "columns": []any{"id", "team_id"},
			},
		},
	})
	samples := map[string][]ir.Row{
		"team":    {textRow("team", "name", "Reds")},
		"players": {textRow("players", "id", "1", "team_id", "7"), textRow("players", "id", "2", "team_id", "")},
	}

	report := SimulateConstraints(doc, samples)
	require.Equal(t, 1, report.Count(IssueOrphan), "issues: %+v", report.Issues)
	orphan := report.Issues[0]
	assert.Equal(t, "players", orphan.Resource)
	assert.Equal(t, "team_id", orphan.Column)
	assert.Equal(t, "7", orphan.Value)
	assert.Equal(t, "team", orphan.Referenced)
	assert.Equal(t, []int{0}, orphan.RowIndexes)
}

func TestSimulateConstraintsPrefersExactParentName(t *testing.T) {
	doc := mustBuild(t, map[string]any{
		"resources": map[string]any{
			"team":  map[string]any{"kind": "table", "selector": "table.a", "columns": []any{"label"}},
			"teams": map[string]any{"kind": "table", "selector": "table.b", "columns": []any{"id"}},
			"players": map[string]any{
				"kind": "table", "selector": "table.p", "columns": []any{"team_id"},
			},
		},
	})
	samples := map[string][]ir.Row{
		"teams":   {textRow("teams", "id", "1")},
		"players": {textRow("players", "team_id", "1")},
	}

	report := SimulateConstraints(doc, samples)
	require.Equal(t, 1, report.Count(IssueOrphan))
	assert.Equal(t, "team", report.Issues[0].Referenced)
}

func TestReferencedResource(t *testing.T) {
	parents := map[string]bool{"club": true, "teams": true}

	tests := []struct {
		col  string
		want string
		ok   bool
	}{
		{"club_id", "club", true},
		{"clubs_id", "club", true},
		{"team_id", "teams", true},
		{"league_id", "", false},
		{"id", "", false},
		{"_id", "", false},
		{"name", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			got, ok := referencedResource(tt.col, parents)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
