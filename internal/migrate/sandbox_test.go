package migrate

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/ir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSandbox(t *testing.T) {
	schema := BuildSandbox(matchesDoc(t), nil)
	require.Len(t, schema.Tables, 2)

	m, ok := schema.Table("matches")
	require.True(t, ok)
	assert.Equal(t, "sandbox_matches", m.Name)
	assert.Equal(t, `CREATE TABLE "sandbox_matches" ("date" TEXT, "home" TEXT, "score" REAL);`, m.DDL)

	_, ok = schema.Table("nope")
	assert.False(t, ok)
}

func TestBuildSandbox_Overrides(t *testing.T) {
	schema := BuildSandbox(matchesDoc(t), map[OverrideKey]FieldType{
		{Resource: "scores", Source: "b"}:      TypeNumber,
		{Resource: "matches", Source: "score"}: TypeString,
		{Resource: "matches", Source: "ghost"}: TypeNumber,
	})

	s, _ := schema.Table("scores")
	assert.Equal(t, []Column{{Name: "a", Type: TypeString}, {Name: "b", Type: TypeNumber}}, s.Columns)

	m, _ := schema.Table("matches")
	assert.Contains(t, m.DDL, `"score" TEXT`)
	assert.NotContains(t, m.DDL, "ghost")
}

func TestSandbox_InsertAndCount(t *testing.T) {
	ctx := context.Background()
	sb, err := OpenSandbox(ctx, BuildSandbox(matchesDoc(t), nil), quietLogger())
	require.NoError(t, err)
	defer sb.Close()

	tables, err := sb.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sandbox_matches", "sandbox_scores"}, tables)

	names := []string{"date", "home", "score"}
	rows := []ir.Row{
		ir.NewRow("matches", names, []ir.Value{ir.Date("2024-03-01"), ir.Text("Ajax"), ir.Int(3)}),
		ir.NewRow("matches", names, []ir.Value{ir.Null{}, ir.Text("PSV"), ir.Text("n/a")}),
	}
	n, err := sb.Insert(ctx, "matches", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := sb.Count(ctx, "matches")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = sb.Count(ctx, "scores")
	require.NoError(t, err)
	assert.Zero(t, count)

	var nulls int
	err = sb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "sandbox_matches" WHERE "score" IS NULL OR "date" IS NULL`).Scan(&nulls)
	require.NoError(t, err)
	assert.Equal(t, 1, nulls)
}

func TestSandbox_UnknownResource(t *testing.T) {
	ctx := context.Background()
	sb, err := OpenSandbox(ctx, BuildSandbox(matchesDoc(t), nil), quietLogger())
	require.NoError(t, err)
	defer sb.Close()

	_, err = sb.Insert(ctx, "ghost", []ir.Row{ir.NewRow("ghost", nil, nil)})
	assert.ErrorContains(t, err, `unknown resource "ghost"`)
	_, err = sb.Count(ctx, "ghost")
	assert.Error(t, err)
}

func TestSandbox_Close(t *testing.T) {
	sb, err := OpenSandbox(context.Background(), &SandboxSchema{}, nil)
	require.NoError(t, err)
	require.NoError(t, sb.Close())
	assert.Error(t, sb.Close())
}

func TestSqlValue(t *testing.T) {
	assert.Nil(t, sqlValue(ir.Null{}, TypeString))
	assert.Equal(t, 2.5, sqlValue(ir.Float(2.5), TypeNumber))
	assert.Equal(t, 7.0, sqlValue(ir.Text(" 7 "), TypeNumber))
	assert.Nil(t, sqlValue(ir.Text("x"), TypeNumber))
	assert.Equal(t, "3", sqlValue(ir.Int(3), TypeString))
}

func TestCreateTables_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	tables := []SandboxTable{
		{Name: "sandbox_ok", DDL: `CREATE TABLE "sandbox_ok" ("a" TEXT);`},
		{Name: "sandbox_bad", DDL: `CREATE TABLE "sandbox_bad" (`},
	}
	err = createTables(ctx, db, tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox_bad")

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&n))
	assert.Zero(t, n, "a failed table must roll back the tables created before it")
}

func TestOpenSandbox_BadDDL(t *testing.T) {
	schema := &SandboxSchema{Tables: []SandboxTable{{Name: "sandbox_bad", DDL: "CREATE TABLE ("}}}
	_, err := OpenSandbox(context.Background(), schema, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create sandbox table sandbox_bad")
}
