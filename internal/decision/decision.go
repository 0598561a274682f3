// Package decision implements the fraud decision pipeline: every transaction
// is checked against the prioritized rule set first, and only falls through
// to the statistical classifier when no rule matches. Decisions are persisted
// write-once per transaction id.
package decision

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Decision sources.
const (
	SourceRule  = "rule"
	SourceModel = "model"
)

// DefaultThreshold is the classifier probability above which a transaction
// is flagged as fraud. A design parameter of the service, not of the model.
const DefaultThreshold = 0.5

// modelReason is the fixed fraud_reason for classifier-sourced decisions.
const modelReason = "predicted by model"

var (
	// ErrInvalidInput indicates an empty or malformed transaction.
	ErrInvalidInput = errors.New("transaction must contain at least one field")

	// ErrDuplicate indicates the transaction id was already decided or
	// already reported. Transaction ids are write-once.
	ErrDuplicate = errors.New("transaction id already exists")

	// ErrNotFound indicates no decision exists for the transaction id.
	ErrNotFound = errors.New("decision not found")

	// ErrStorageUnavailable indicates the persistence layer could not be
	// reached. A computed decision is still returned alongside it.
	ErrStorageUnavailable = errors.New("decision storage unavailable")
)

// Transaction is an open map of named fields. The feature encoder reads a
// fixed subset; rule conditions may reference any field.
type Transaction map[string]any

// ID returns the transaction's id field, or "unknown" when absent.
func (t Transaction) ID() string {
	switch v := t["transaction_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case nil:
	default:
		return fmt.Sprint(v)
	}
	return "unknown"
}

// Decision is the outcome of running one transaction through the pipeline.
type Decision struct {
	TransactionID string    `json:"transaction_id"`
	IsFraud       bool      `json:"is_fraud"`
	FraudSource   string    `json:"fraud_source"`
	FraudReason   string    `json:"fraud_reason"`
	FraudScore    float64   `json:"fraud_score"`
	DecidedAt     time.Time `json:"decided_at"`
}

// FraudReport is an external party's assertion that a decided transaction
// was fraudulent. One report per transaction id, append-only.
type FraudReport struct {
	TransactionID     string    `json:"transaction_id"`
	ReportingEntityID string    `json:"reporting_entity_id"`
	FraudDetails      string    `json:"fraud_details"`
	ReportTime        time.Time `json:"report_time"`
}

// safeKeywords mark a rule action as classifying the transaction non-fraud.
// Matching is case-insensitive substring containment.
var safeKeywords = []string{"safe", "approved", "all good", "verified", "trusted"}

// ActionIsSafe reports whether a rule's action text classifies matching
// transactions as non-fraud rather than fraud.
func ActionIsSafe(action string) bool {
	a := strings.ToLower(action)
	for _, kw := range safeKeywords {
		if strings.Contains(a, kw) {
			return true
		}
	}
	return false
}
