package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/ingestlab/internal/ir"
)

// RuleVersion is one saved rule document. Rules holds the canonical JSON
// of the raw payload.
type RuleVersion struct {
	Number    int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Hash      string          `json:"rules_hash"`
	Rules     json.RawMessage `json:"rules"`
}

// Payload decodes Rules back into a raw rule payload.
func (v RuleVersion) Payload() (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(v.Rules, &raw); err != nil {
		return nil, fmt.Errorf("version %d: decode rules: %w", v.Number, err)
	}
	return raw, nil
}

const versionColumns = `version_num, created_at, rules_hash, rules_json`

// SaveVersion records raw as the next version. When raw hashes the same as
// the latest version nothing is written and the latest version is returned
// with created false. Numbering starts at 1.
func (s *Store) SaveVersion(ctx context.Context, raw map[string]any) (v RuleVersion, created bool, err error) {
	hash, err := ir.PayloadHash(raw)
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("save version: %w", err)
	}
	rules, err := ir.MarshalCanonical(raw)
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("save version: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("save version: begin: %w", err)
	}
	defer tx.Rollback()

	latest, ok, err := scanVersion(tx.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM rule_set_versions ORDER BY version_num DESC LIMIT 1`))
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("save version: %w", err)
	}
	if ok && latest.Hash == hash {
		return latest, false, nil
	}

	v = RuleVersion{
		Number:    latest.Number + 1,
		CreatedAt: time.Now().UTC(),
		Hash:      hash,
		Rules:     rules,
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO rule_set_versions (`+versionColumns+`) VALUES (?, ?, ?, ?)`,
		v.Number, v.CreatedAt.Format(time.RFC3339Nano), v.Hash, string(v.Rules))
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("save version %d: %w", v.Number, err)
	}
	if err := tx.Commit(); err != nil {
		return RuleVersion{}, false, fmt.Errorf("save version: commit: %w", err)
	}
	return v, true, nil
}

// LatestVersion returns the newest version. ok is false when none is saved.
func (s *Store) LatestVersion(ctx context.Context) (RuleVersion, bool, error) {
	return s.versionAt(ctx, 0)
}

// PreviousVersion returns the version before the newest, the rollback
// target. ok is false when fewer than two versions exist.
func (s *Store) PreviousVersion(ctx context.Context) (RuleVersion, bool, error) {
	return s.versionAt(ctx, 1)
}

func (s *Store) versionAt(ctx context.Context, offset int) (RuleVersion, bool, error) {
	v, ok, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM rule_set_versions ORDER BY version_num DESC LIMIT 1 OFFSET ?`, offset))
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("read version: %w", err)
	}
	return v, ok, nil
}

// GetVersion returns version number n.
func (s *Store) GetVersion(ctx context.Context, n int) (RuleVersion, bool, error) {
	v, ok, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM rule_set_versions WHERE version_num = ?`, n))
	if err != nil {
		return RuleVersion{}, false, fmt.Errorf("read version %d: %w", n, err)
	}
	return v, ok, nil
}

// ListVersions returns every version, newest first.
func (s *Store) ListVersions(ctx context.Context) ([]RuleVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM rule_set_versions ORDER BY version_num DESC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []RuleVersion{}
	for rows.Next() {
		v, err := decodeVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

func scanVersion(row *sql.Row) (RuleVersion, bool, error) {
	v, err := decodeVersion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return RuleVersion{}, false, nil
	}
	if err != nil {
		return RuleVersion{}, false, err
	}
	return v, true, nil
}

func decodeVersion(scan func(dest ...any) error) (RuleVersion, error) {
	var (
		v         RuleVersion
		createdAt string
		rules     string
	)
	if err := scan(&v.Number, &createdAt, &v.Hash, &rules); err != nil {
		return RuleVersion{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RuleVersion{}, fmt.Errorf("version %d: parse created_at: %w", v.Number, err)
	}
	v.CreatedAt = t
	v.Rules = json.RawMessage(rules)
	return v, nil
}
