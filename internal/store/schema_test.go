package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/compiler"
	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/migrate"
)

func scoresDoc(t *testing.T) *ir.RuleDocument {
	t.Helper()
	doc, err := compiler.Build(map[string]any{
		"resources": map[string]any{
			"scores": map[string]any{
				"kind":     "table",
				"selector": "table",
				"columns":  []any{"a", "b"},
			},
			"players": map[string]any{
				"kind":          "list",
				"selector":      "ul",
				"item_selector": "li",
				"fields": map[string]any{
					"name":   ".nm",
					"points": map[string]any{"selector": ".pt", "transforms": []any{"to_number"}},
				},
			},
		},
	})
	require.NoError(t, err)
	return doc
}

func TestIntrospect_FreshStore(t *testing.T) {
	s := createTestStore(t)

	live, err := s.Introspect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, live, "audit table must not be reported")
}

func TestIntrospect_ReportsTypes(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Exec(ctx, `CREATE TABLE scores (a TEXT, b integer)`))

	live, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrate.LiveSchema{
		"scores": {"a": "TEXT", "b": "integer"},
	}, live)
}

func TestApplyPlan_ThenPlanIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	doc := scoresDoc(t)

	plan, err := migrate.PlanFrom(ctx, doc, s)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Count(migrate.ActionCreateTable))

	n, err := s.ApplyPlan(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	live, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "REAL", live["players"]["points"])

	again, err := migrate.PlanFrom(ctx, doc, s)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestApplyPlan_AddColumn(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Exec(ctx, `CREATE TABLE scores (a TEXT)`))
	require.NoError(t, s.Exec(ctx, `CREATE TABLE players (name TEXT, points INTEGER)`))

	plan, err := migrate.PlanFrom(ctx, scoresDoc(t), s)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Count(migrate.ActionAddColumn))
	assert.Equal(t, 1, plan.Count(migrate.ActionTypeNote))

	n, err := s.ApplyPlan(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	live, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.Contains(t, live["scores"], "b")
	assert.Equal(t, "INTEGER", live["players"]["points"], "type notes never alter columns")
}

func TestApplyPlan_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Exec(ctx, `CREATE TABLE taken (x TEXT)`))

	plan := &migrate.Plan{Actions: []migrate.Action{
		{Kind: migrate.ActionCreateTable, Table: "fresh", SQL: `CREATE TABLE "fresh" ("x" TEXT);`},
		{Kind: migrate.ActionCreateTable, Table: "taken", SQL: `CREATE TABLE "taken" ("x" TEXT);`},
	}}
	_, err := s.ApplyPlan(ctx, plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2")

	live, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.NotContains(t, live, "fresh")
}

func TestApplyPlan_Empty(t *testing.T) {
	s := createTestStore(t)
	n, err := s.ApplyPlan(context.Background(), &migrate.Plan{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
