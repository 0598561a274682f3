package decision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists decisions and fraud reports in PostgreSQL. The
// primary keys on transaction_id are the write-once enforcement: concurrent
// inserts for the same id race at the database, exactly one wins, and the
// loser gets a unique violation mapped to ErrDuplicate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed decision store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions and fraud_reports tables if absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			transaction_id TEXT PRIMARY KEY,
			amount         DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_fraud       BOOLEAN NOT NULL,
			fraud_source   TEXT NOT NULL,
			fraud_reason   TEXT NOT NULL,
			fraud_score    DOUBLE PRECISION NOT NULL,
			decided_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS fraud_reports (
			transaction_id      TEXT PRIMARY KEY,
			reporting_entity_id TEXT NOT NULL,
			fraud_details       TEXT NOT NULL,
			report_time         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, d *Decision, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, amount, is_fraud, fraud_source, fraud_reason, fraud_score, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.TransactionID, amount, d.IsFraud, d.FraudSource, d.FraudReason, d.FraudScore, d.DecidedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: record decision: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, transactionID string) (*Decision, error) {
	var d Decision
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, is_fraud, fraud_source, fraud_reason, fraud_score, decided_at
		FROM transactions WHERE transaction_id = $1
	`, transactionID).Scan(&d.TransactionID, &d.IsFraud, &d.FraudSource, &d.FraudReason, &d.FraudScore, &d.DecidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get decision: %v", ErrStorageUnavailable, err)
	}
	return &d, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, is_fraud, fraud_source, fraud_reason, fraud_score, decided_at
		FROM transactions ORDER BY decided_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list decisions: %v", ErrStorageUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.TransactionID, &d.IsFraud, &d.FraudSource, &d.FraudReason, &d.FraudScore, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		result = append(result, &d)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Report(ctx context.Context, r *FraudReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fraud_reports (transaction_id, reporting_entity_id, fraud_details, report_time)
		VALUES ($1, $2, $3, $4)
	`, r.TransactionID, r.ReportingEntityID, r.FraudDetails, r.ReportTime)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: record report: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
