package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/testutil"
)

type coerceField struct {
	Resource       string   `json:"resource"`
	Field          string   `json:"field"`
	Total          int      `json:"total"`
	Success        int      `json:"success"`
	Failures       int      `json:"failures"`
	CoercedSamples []any    `json:"coerced_samples"`
	Errors         []string `json:"errors"`
}

func TestCoerce_Text(t *testing.T) {
	p := newProject(t)

	out, err := execute(t, "coerce", p.rules, p.pages)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ players.name  2/2 coerced")
	assert.Contains(t, out, "✓ players.rank  2/2 coerced")
	assert.Contains(t, out, "0 failure(s)")
}

func TestCoerce_StrictFailsOnBadValue(t *testing.T) {
	p := newProject(t)
	testutil.WriteDocs(t, p.pages, map[string]string{
		"c.html": testutil.ListHTML("p", []string{"n", "r"}, []string{"Cy", "first"}),
	})

	out, err := execute(t, "--format", "json", "coerce", "--strict", p.rules, p.pages)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var report struct {
		Fields []coerceField `json:"fields"`
	}
	resp := decodeData(t, out, &report)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, report.Fields, 2)

	rank := report.Fields[1]
	assert.Equal(t, "rank", rank.Field)
	assert.Equal(t, 3, rank.Total)
	assert.Equal(t, 1, rank.Failures)
	assert.Equal(t, []any{float64(1), nil}, rank.CoercedSamples)
	require.Len(t, rank.Errors, 1)
	assert.Contains(t, rank.Errors[0], `"first"`)
}

func TestCoerce_NotStrictReportsOnly(t *testing.T) {
	p := newProject(t)
	testutil.WriteDocs(t, p.pages, map[string]string{
		"c.html": testutil.ListHTML("p", []string{"n", "r"}, []string{"Cy", "first"}),
	})

	out, err := execute(t, "coerce", p.rules, p.pages)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✗ players.rank  2/3 coerced")
	assert.Contains(t, out, "error: NUMERIC_PARSE: to_number: not a number")
}
