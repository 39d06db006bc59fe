package store

import (
	"context"
	"fmt"

	"github.com/roach88/ingestlab/internal/migrate"
)

// Introspect describes every destination table and its declared column
// types. SQLite internal tables, the audit log and the rule version history
// are excluded.
func (s *Store) Introspect(ctx context.Context) (migrate.LiveSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT IN (?, ?)
		ORDER BY name
	`, AuditTable, VersionsTable)
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("introspect tables: %w", err)
		}
		tables = append(tables, name)
	}
	// Close before the per-table queries: the pool holds a single connection.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	live := make(migrate.LiveSchema, len(tables))
	for _, table := range tables {
		cols, err := s.tableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		live[table] = cols
	}
	return live, nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", table, err)
		}
		cols[name] = typ
	}
	return cols, rows.Err()
}

// ApplyPlan executes the plan's statements in one transaction and returns
// how many ran. Type notes carry no SQL and are skipped.
func (s *Store) ApplyPlan(ctx context.Context, plan *migrate.Plan) (int, error) {
	stmts := plan.Statements()
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply plan: begin: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("apply plan: statement %d (%s): %w", i+1, stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("apply plan: commit: %w", err)
	}
	return len(stmts), nil
}
