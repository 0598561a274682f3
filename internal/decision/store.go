package decision

import "context"

// Store persists decisions and fraud reports. Both tables are keyed by
// transaction id and write-once: a second insert for the same id fails
// with ErrDuplicate.
type Store interface {
	// Record inserts a decision keyed by its transaction id along with the
	// transaction amount for audit. Returns ErrDuplicate if the id was
	// already decided.
	Record(ctx context.Context, d *Decision, amount float64) error

	// Get returns the decision for a transaction id, or ErrNotFound.
	Get(ctx context.Context, transactionID string) (*Decision, error)

	// List returns the most recent decisions, newest first, up to limit.
	List(ctx context.Context, limit int) ([]*Decision, error)

	// Report appends a fraud report. Returns ErrDuplicate if this
	// transaction id was already reported.
	Report(ctx context.Context, r *FraudReport) error
}
