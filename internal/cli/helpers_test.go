package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/testutil"
)

// playersRules is a list "players" (name, rank) with a name gate.
const playersRules = `version: 1
resources:
  players:
    kind: list
    selector: ul.p
    item_selector: li
    fields:
      name:
        selector: span.n
      rank:
        selector: span.r
        transforms: [trim, to_number]
quality_gates:
  players.name: 1.0
`

// project is a temporary directory holding rules.yaml and pages/.
type project struct {
	dir   string
	rules string
	pages string
	db    string
}

// newProject writes the players scenario: a.html lists Ann (rank 1) and Bo,
// b.html lists Bo again.
func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{
		dir:   dir,
		rules: filepath.Join(dir, "rules.yaml"),
		pages: filepath.Join(dir, "pages"),
		db:    filepath.Join(dir, "live.db"),
	}
	require.NoError(t, os.WriteFile(p.rules, []byte(playersRules), 0o644))
	testutil.WriteDocs(t, p.pages, map[string]string{
		"a.html": testutil.ListHTML("p", []string{"n", "r"}, []string{"Ann", "1"}, []string{"Bo", ""}),
		"b.html": testutil.ListHTML("p", []string{"n", "r"}, []string{"Bo", ""}),
	})
	return p
}

func (p *project) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(p.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// decodeData unmarshals the data member of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope), out)
	if v != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, v))
	}
	return CLIResponse{Status: envelope.Status, Error: envelope.Error}
}

// writeTablePages writes teams.html (team 1) and nested/players.htm whose
// second player references a missing team 2.
func writeTablePages(t *testing.T, dir string) {
	t.Helper()
	testutil.WriteDocs(t, dir, map[string]string{
		"teams.html":         testutil.TableHTML("t", []string{"id", "name"}, []string{"1", "Reds"}),
		"nested/players.htm": testutil.TableHTML("p", []string{"id", "team_id"}, []string{"10", "1"}, []string{"11", "2"}),
	})
}
