package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// AuditTable is the name of the apply audit log. It is never reported as a
// destination table.
const AuditTable = "rule_apply_audit"

// VersionsTable holds saved rule document versions. Like AuditTable it is
// never reported as a destination table.
const VersionsTable = "rule_set_versions"

// migration upgrades a database whose user_version is below version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order inside one transaction each. schema.sql always
// describes the latest layout, so every statement must be a no-op on a
// fresh database.
var migrations = []migration{
	// resource index for `audit --resource`
	{1, `CREATE INDEX IF NOT EXISTS idx_rule_apply_audit_resource ON rule_apply_audit(resource, id)`},
	// rule document history for `versions`
	{2, `CREATE TABLE IF NOT EXISTS rule_set_versions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		version_num INTEGER NOT NULL UNIQUE,
		created_at  TEXT    NOT NULL,
		rules_hash  TEXT    NOT NULL,
		rules_json  TEXT    NOT NULL
	)`},
}

// schemaVersion is the user_version of a fully migrated database.
var schemaVersion = migrations[len(migrations)-1].version

// pragmas are applied to every connection in order.
var pragmas = [][2]string{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Store is the live destination database: introspection, plan DDL, the
// append-only apply audit log and the rule version history. It holds a
// single connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the live database at path, applies the
// connection pragmas and migrates the audit log. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Exec runs a statement outside any transaction. It exists for loading
// destination data in tests and tooling; schema changes go through
// ApplyPlan.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p[0], p[1])
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

// applySchema creates the audit log and brings user_version up to
// schemaVersion. Safe to run on every open.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := runMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// runMigration applies one migration and records its version atomically.
func runMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.stmt); err != nil {
		return fmt.Errorf("migrate to v%d: %w", m.version, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
	}
	return tx.Commit()
}

// verifyPragma reports whether pragma name currently reads expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
