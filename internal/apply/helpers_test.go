package apply

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ingestlab/internal/compiler"
	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/store"
	"github.com/roach88/ingestlab/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustBuild(t *testing.T, raw map[string]any) *ir.RuleDocument {
	t.Helper()
	doc, err := compiler.Build(raw)
	require.NoError(t, err)
	return doc
}

// playersPayload is a list "players" (name, rank) gated at name 1.0 and
// rank 0.5.
func playersPayload(withExpr bool) map[string]any {
	var name any = map[string]any{"selector": "span.n"}
	if withExpr {
		name = map[string]any{
			"selector":   "span.n",
			"transforms": []any{map[string]any{"kind": "expr", "code": "upper(value)"}},
		}
	}
	return map[string]any{
		"version":           1,
		"allow_expressions": withExpr,
		"resources": map[string]any{
			"players": map[string]any{
				"kind":          "list",
				"selector":      "ul.p",
				"item_selector": "li",
				"fields": map[string]any{
					"name": name,
					"rank": map[string]any{"selector": "span.r"},
				},
			},
		},
		"quality_gates": map[string]any{"players.name": 1.0, "players.rank": 0.5},
	}
}

// playersSamples has two players, one of them unranked.
func playersSamples() map[string]string {
	return map[string]string{
		"f1": testutil.ListHTML("p", []string{"n", "r"}, []string{"Alice", "1"}, []string{"Bob", ""}),
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	store *store.Store
	clock *testutil.ManualClock
	coord *Coordinator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store: openStore(t),
		clock: testutil.NewManualClock(testutil.Epoch),
	}
	base := []Option{
		WithNow(f.clock.Now),
		WithLogger(quietLogger()),
		WithBatchIDs(testutil.NewSequentialIDs("").Next),
	}
	f.coord = NewCoordinator(f.store, append(base, opts...)...)
	return f
}

func (f *fixture) auditCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountAudit(context.Background())
	require.NoError(t, err)
	return n
}

// failingWriter fails every write and counts attempts.
type failingWriter struct {
	mu    sync.Mutex
	calls int
}

var errWriteFailed = errors.New("disk full")

func (w *failingWriter) WriteAudit(context.Context, []store.AuditEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return errWriteFailed
}
