package store

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", AuditTable,
	).Scan(&name)
	if err != nil {
		t.Errorf("audit table not found after idempotent opens: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", strconv.Itoa(schemaVersion)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

// Schema tests

func TestSchema_AuditTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, AuditTable)
	expected := []string{
		"id", "batch_id", "simulation_id", "resource", "row_count", "payload_hash", "applied_at",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("%s table missing column %q", AuditTable, col)
		}
	}
}

func TestSchema_AuditIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, AuditTable)
	for _, idx := range []string{"idx_rule_apply_audit_simulation", "idx_rule_apply_audit_resource"} {
		if !contains(indexes, idx) {
			t.Errorf("missing index %q, have %v", idx, indexes)
		}
	}
}

func TestMigration_FromVersionZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("DROP INDEX idx_rule_apply_audit_resource"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if !contains(getTableIndexes(t, s.db, AuditTable), "idx_rule_apply_audit_resource") {
		t.Error("migration did not recreate resource index")
	}
	if err := s.verifyPragma("user_version", strconv.Itoa(schemaVersion)); err != nil {
		t.Error(err)
	}
}

func TestMigration_FromVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("DROP TABLE " + VersionsTable); err != nil {
		t.Fatalf("drop versions table: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	columns := getTableColumns(t, s.db, VersionsTable)
	for _, col := range []string{"id", "version_num", "created_at", "rules_hash", "rules_json"} {
		if !contains(columns, col) {
			t.Errorf("missing column %q in %s, have %v", col, VersionsTable, columns)
		}
	}
	if err := s.verifyPragma("user_version", strconv.Itoa(schemaVersion)); err != nil {
		t.Error(err)
	}
}
