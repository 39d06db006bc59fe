package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"
)

// LiveSchema describes an existing destination: table -> column -> declared
// type.
type LiveSchema map[string]map[string]string

// Introspector reads the live destination schema.
type Introspector interface {
	Introspect(ctx context.Context) (LiveSchema, error)
}

// ActionKind is the type of a planned change.
type ActionKind string

const (
	ActionCreateTable ActionKind = "create_table"
	ActionAddColumn   ActionKind = "add_column"
	// ActionTypeNote is informational only and carries no SQL.
	ActionTypeNote ActionKind = "type_note"
)

// Action is one proposed change.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Table   string     `json:"table"`
	Column  string     `json:"column,omitempty"`
	SQLType string     `json:"sql_type,omitempty"`
	SQL     string     `json:"sql,omitempty"`
	Note    string     `json:"note,omitempty"`
}

// Plan is an ordered list of proposed actions.
type Plan struct {
	Actions []Action `json:"actions"`
}

// Statements returns the executable DDL of the plan in order. Type notes
// are skipped.
func (p *Plan) Statements() []string {
	var out []string
	for _, a := range p.Actions {
		if a.SQL != "" && a.Kind != ActionTypeNote {
			out = append(out, a.SQL)
		}
	}
	return out
}

// Count returns the number of actions of the given kind.
func (p *Plan) Count(kind ActionKind) int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Empty reports whether the live schema already matches.
func (p *Plan) Empty() bool { return len(p.Actions) == 0 }

// PlanSchema diffs the schema implied by doc against live. Each resource
// maps to a table of the same name. Actions are ordered by table name, then
// by column order within the table.
func PlanSchema(doc *ir.RuleDocument, live LiveSchema) *Plan {
	plan := &Plan{Actions: []Action{}}
	for _, res := range doc.Resources() {
		table := res.ResourceName()
		entries := inferResource(res)

		liveCols, exists := live[table]
		if !exists {
			cols := make([]Column, len(entries))
			for i, e := range entries {
				cols[i] = Column{Name: e.TargetColumn, Type: e.Type}
			}
			plan.Actions = append(plan.Actions, Action{
				Kind:  ActionCreateTable,
				Table: table,
				SQL:   CreateTableSQL(table, cols),
				Note:  fmt.Sprintf("new table for resource %q", table),
			})
			continue
		}

		for _, e := range entries {
			want := e.Type.SQLType()
			got, ok := liveCols[e.TargetColumn]
			if !ok {
				plan.Actions = append(plan.Actions, Action{
					Kind:    ActionAddColumn,
					Table:   table,
					Column:  e.TargetColumn,
					SQLType: want,
					SQL:     AddColumnSQL(table, Column{Name: e.TargetColumn, Type: e.Type}),
				})
				continue
			}
			if got = strings.ToUpper(strings.TrimSpace(got)); got != want {
				if got == "" {
					got = "UNKNOWN"
				}
				plan.Actions = append(plan.Actions, Action{
					Kind:    ActionTypeNote,
					Table:   table,
					Column:  e.TargetColumn,
					SQLType: want,
					Note: fmt.Sprintf("column %q type mismatch (live=%s, expected=%s); manual migration required",
						e.TargetColumn, got, want),
				})
			}
		}
	}
	return plan
}

// PlanFrom introspects the live schema and plans against it.
func PlanFrom(ctx context.Context, doc *ir.RuleDocument, in Introspector) (*Plan, error) {
	live, err := in.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect live schema: %w", err)
	}
	return PlanSchema(doc, live), nil
}
