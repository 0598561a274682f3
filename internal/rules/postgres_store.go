package rules

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists rules in PostgreSQL.
//
// All mutations run inside a transaction that takes an EXCLUSIVE lock on the
// fraud_rules table: readers proceed, writers serialize. That single-writer
// discipline is what keeps Delete's renumbering from racing a concurrent
// Create, and transactional visibility guarantees no reader ever observes a
// half-renumbered table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed rule store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the fraud_rules table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fraud_rules (
			id         INTEGER PRIMARY KEY CHECK (id > 0),
			condition  TEXT NOT NULL,
			action     TEXT NOT NULL,
			enabled    BOOLEAN NOT NULL DEFAULT true,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]Rule, error) {
	return s.list(ctx, `SELECT id, condition, action, enabled FROM fraud_rules ORDER BY id`)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Rule, error) {
	return s.list(ctx, `SELECT id, condition, action, enabled FROM fraud_rules WHERE enabled ORDER BY id`)
}

func (s *PostgresStore) list(ctx context.Context, query string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Condition, &r.Action, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, condition, action string, enabled bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockRules(ctx, tx); err != nil {
		return 0, err
	}

	var id int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO fraud_rules (id, condition, action, enabled)
		VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM fraud_rules), $1, $2, $3)
		RETURNING id
	`, condition, action, enabled).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int, condition, action string, enabled bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE fraud_rules
		SET condition = $1, action = $2, enabled = $3, updated_at = NOW()
		WHERE id = $4
	`, condition, action, enabled, id)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule and rewrites the table with ids reassigned 1..N in
// the survivors' original order: reload ordered by id, truncate, reinsert in
// one transaction, so no observer sees a gap or a duplicate.
func (s *PostgresStore) Delete(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockRules(ctx, tx); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM fraud_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRuleNotFound
	}

	survivors, err := func() ([]Rule, error) {
		rows, err := tx.QueryContext(ctx, `SELECT condition, action, enabled FROM fraud_rules ORDER BY id`)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()
		var out []Rule
		for rows.Next() {
			var r Rule
			if err := rows.Scan(&r.Condition, &r.Action, &r.Enabled); err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, rows.Err()
	}()
	if err != nil {
		return fmt.Errorf("reload survivors: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fraud_rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for i, r := range survivors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fraud_rules (id, condition, action, enabled)
			VALUES ($1, $2, $3, $4)
		`, i+1, r.Condition, r.Action, r.Enabled); err != nil {
			return fmt.Errorf("renumber rule %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// lockRules takes a table-level EXCLUSIVE lock for the current transaction.
// EXCLUSIVE blocks other writers but not plain SELECTs.
func lockRules(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `LOCK TABLE fraud_rules IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock fraud_rules: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
