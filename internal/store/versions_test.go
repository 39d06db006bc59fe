package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func rulesPayload(selector string) map[string]any {
	return map[string]any{
		"version": 1,
		"resources": map[string]any{
			"players": map[string]any{
				"kind":          "list",
				"selector":      selector,
				"item_selector": "li",
				"fields":        map[string]any{"name": ".nm"},
			},
		},
	}
}

func TestSaveVersion_NumbersFromOne(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, ok, err := s.LatestVersion(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	v1, created, err := s.SaveVersion(ctx, rulesPayload("ul.a"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, v1.Number)

	wantHash, err := ir.PayloadHash(rulesPayload("ul.a"))
	require.NoError(t, err)
	assert.Equal(t, wantHash, v1.Hash)

	v2, created, err := s.SaveVersion(ctx, rulesPayload("ul.b"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, v2.Number)
}

func TestSaveVersion_SkipsUnchangedPayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first, _, err := s.SaveVersion(ctx, rulesPayload("ul.a"))
	require.NoError(t, err)

	// Same content, integral float spelling.
	again := rulesPayload("ul.a")
	again["version"] = 1.0
	got, created, err := s.SaveVersion(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Number, got.Number)

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestSaveVersion_RevertIsANewVersion(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, sel := range []string{"ul.a", "ul.b", "ul.a"} {
		_, created, err := s.SaveVersion(ctx, rulesPayload(sel))
		require.NoError(t, err)
		assert.True(t, created, sel)
	}

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{versions[0].Number, versions[1].Number, versions[2].Number})
	assert.Equal(t, versions[0].Hash, versions[2].Hash)
}

func TestPreviousVersion(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, _, err := s.SaveVersion(ctx, rulesPayload("ul.a"))
	require.NoError(t, err)
	_, ok, err := s.PreviousVersion(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a single version has no rollback target")

	_, _, err = s.SaveVersion(ctx, rulesPayload("ul.b"))
	require.NoError(t, err)
	prev, ok, err := s.PreviousVersion(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, prev.Number)

	raw, err := prev.Payload()
	require.NoError(t, err)
	assert.Equal(t, "ul.a", raw["resources"].(map[string]any)["players"].(map[string]any)["selector"])
}

func TestGetVersion(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	saved, _, err := s.SaveVersion(ctx, rulesPayload("ul.a"))
	require.NoError(t, err)

	got, ok, err := s.GetVersion(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved.Hash, got.Hash)
	assert.JSONEq(t, string(saved.Rules), string(got.Rules))
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))

	_, ok, err = s.GetVersion(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVersionsTable_NotIntrospected(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, _, err := s.SaveVersion(ctx, rulesPayload("ul.a"))
	require.NoError(t, err)

	live, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)
}
