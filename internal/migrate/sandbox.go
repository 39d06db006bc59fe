package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"

	_ "modernc.org/sqlite"
)

// SandboxPrefix prefixes every sandbox table name.
const SandboxPrefix = "sandbox_"

// OverrideKey selects one source field for a type override.
type OverrideKey struct {
	Resource string
	Source   string
}

// SandboxTable is the schema of one sandbox table.
type SandboxTable struct {
	Resource string   `json:"resource"`
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
	DDL      string   `json:"ddl"`
}

// SandboxSchema is the full sandbox layout in resource name order.
type SandboxSchema struct {
	Tables []SandboxTable `json:"tables"`
}

// Table returns the sandbox table of a resource.
func (s *SandboxSchema) Table(resource string) (SandboxTable, bool) {
	for _, t := range s.Tables {
		if t.Resource == resource {
			return t, true
		}
	}
	return SandboxTable{}, false
}

// BuildSandbox derives the sandbox schema from doc. Overrides replace the
// inferred type of individual source fields; overrides naming unknown
// fields are ignored.
func BuildSandbox(doc *ir.RuleDocument, overrides map[OverrideKey]FieldType) *SandboxSchema {
	schema := &SandboxSchema{}
	for _, res := range doc.Resources() {
		name := SandboxPrefix + res.ResourceName()
		var cols []Column
		for _, e := range inferResource(res) {
			typ := e.Type
			if o, ok := overrides[OverrideKey{Resource: e.Resource, Source: e.Source}]; ok {
				typ = o
			}
			cols = append(cols, Column{Name: e.TargetColumn, Type: typ})
		}
		schema.Tables = append(schema.Tables, SandboxTable{
			Resource: res.ResourceName(),
			Name:     name,
			Columns:  cols,
			DDL:      CreateTableSQL(name, cols),
		})
	}
	return schema
}

// Sandbox is a disposable in-memory database holding a SandboxSchema.
//
// CRITICAL: the pool is pinned to a single connection. Every connection to
// ":memory:" opens its own private database, so a second connection would
// see no tables.
type Sandbox struct {
	db     *sql.DB
	schema *SandboxSchema
	logger *slog.Logger
}

// OpenSandbox creates the in-memory database and every sandbox table.
func OpenSandbox(ctx context.Context, schema *SandboxSchema, logger *slog.Logger) (*Sandbox, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sandbox: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(ctx, db, schema.Tables); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("sandbox opened", "tables", len(schema.Tables))
	return &Sandbox{db: db, schema: schema, logger: logger}, nil
}

// createTables runs every table's DDL in one transaction: either all
// sandbox tables exist afterwards or none do.
func createTables(ctx context.Context, db *sql.DB, tables []SandboxTable) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create sandbox tables: begin: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, t.DDL); err != nil {
			return fmt.Errorf("create sandbox table %s: %w", t.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create sandbox tables: commit: %w", err)
	}
	return nil
}

// Insert writes rows into the sandbox table of resource in one transaction.
// Values are converted to the declared column type; values that do not fit
// are stored as NULL.
func (s *Sandbox) Insert(ctx context.Context, resource string, rows []ir.Row) (int, error) {
	table, ok := s.schema.Table(resource)
	if !ok {
		return 0, fmt.Errorf("sandbox insert: unknown resource %q", resource)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	names := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = QuoteIdent(c.Name)
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table.Name), strings.Join(names, ", "), strings.Join(marks, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sandbox insert: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("sandbox insert: prepare: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		args := make([]any, len(table.Columns))
		for j, c := range table.Columns {
			args[j] = sqlValue(row.Get(c.Name), c.Type)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("sandbox insert: row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sandbox insert: commit: %w", err)
	}
	s.logger.Debug("sandbox rows inserted", "resource", resource, "rows", len(rows))
	return len(rows), nil
}

// Count returns the number of rows in the sandbox table of resource.
func (s *Sandbox) Count(ctx context.Context, resource string) (int, error) {
	table, ok := s.schema.Table(resource)
	if !ok {
		return 0, fmt.Errorf("sandbox count: unknown resource %q", resource)
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table.Name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sandbox count: %w", err)
	}
	return n, nil
}

// Tables lists the tables that exist in the sandbox database.
func (s *Sandbox) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("sandbox tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sandbox tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the database. The sandbox contents are discarded.
func (s *Sandbox) Close() error {
	if s.db == nil {
		return errors.New("sandbox already closed")
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func sqlValue(v ir.Value, typ FieldType) any {
	if ir.IsAbsent(v) {
		return nil
	}
	switch typ {
	case TypeNumber:
		switch n := v.(type) {
		case ir.Int:
			return float64(n)
		case ir.Float:
			return float64(n)
		default:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
			if err != nil {
				return nil
			}
			return f
		}
	default:
		return v.String()
	}
}
