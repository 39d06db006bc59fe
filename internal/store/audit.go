package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AuditEntry is one row of the apply audit log.
type AuditEntry struct {
	ID           int64     `json:"id"`
	BatchID      string    `json:"batch_id"`
	SimulationID int64     `json:"simulation_id"`
	Resource     string    `json:"resource"`
	RowCount     int       `json:"row_count"`
	PayloadHash  string    `json:"payload_hash"`
	AppliedAt    time.Time `json:"applied_at"`
}

// AuditFilter narrows ReadAudit. Zero fields match everything.
type AuditFilter struct {
	SimulationID int64
	Resource     string
}

// WriteAudit appends entries in a single transaction. Either every entry is
// written or none is. The ID of each entry is ignored; the database assigns
// it.
func (s *Store) WriteAudit(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write audit: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rule_apply_audit
			(batch_id, simulation_id, resource, row_count, payload_hash, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write audit: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.BatchID,
			e.SimulationID,
			e.Resource,
			e.RowCount,
			e.PayloadHash,
			e.AppliedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("write audit for resource %q: %w", e.Resource, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write audit: commit: %w", err)
	}
	return nil
}

// ReadAudit returns matching entries in insertion order.
func (s *Store) ReadAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.SimulationID != 0 {
		where = append(where, "simulation_id = ?")
		args = append(args, filter.SimulationID)
	}
	if filter.Resource != "" {
		where = append(where, "resource = ?")
		args = append(args, filter.Resource)
	}

	query := `
		SELECT id, batch_id, simulation_id, resource, row_count, payload_hash, applied_at
		FROM rule_apply_audit`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e         AuditEntry
			appliedAt string
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.SimulationID, &e.Resource,
			&e.RowCount, &e.PayloadHash, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt)
		if err != nil {
			return nil, fmt.Errorf("audit entry %d: parse applied_at: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return entries, nil
}

// CountAudit returns the number of audit entries.
func (s *Store) CountAudit(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rule_apply_audit").Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit: %w", err)
	}
	return n, nil
}
