package decision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mbd888/fraudgate/internal/model"
	"github.com/mbd888/fraudgate/internal/rules"
)

// fixedScorer always returns the same probability.
type fixedScorer struct{ prob float64 }

func (s fixedScorer) Predict([]float64) (float64, error) { return s.prob, nil }
func (s fixedScorer) Version() string                    { return "fixed" }

// failingStore rejects every Record call.
type failingStore struct{ *MemoryStore }

func (failingStore) Record(context.Context, *Decision, float64) error {
	return fmt.Errorf("%w: connection refused", ErrStorageUnavailable)
}

func newTestPipeline(t *testing.T, scorer model.Scorer) (*Pipeline, *rules.MemoryStore, *MemoryStore) {
	t.Helper()
	rs := rules.NewMemoryStore()
	ds := NewMemoryStore()
	return NewPipeline(rs, scorer, ds, 0), rs, ds
}

func mustAddRule(t *testing.T, rs *rules.MemoryStore, cond, action string) {
	t.Helper()
	if _, err := rs.Create(context.Background(), cond, action, true); err != nil {
		t.Fatalf("Create rule: %v", err)
	}
}

func TestDecide_EmptyTransaction(t *testing.T) {
	p, _, _ := newTestPipeline(t, fixedScorer{0.1})

	if _, err := p.Decide(context.Background(), Transaction{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Decide(empty) = %v, want ErrInvalidInput", err)
	}
	if _, err := p.Decide(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Decide(nil) = %v, want ErrInvalidInput", err)
	}
}

func TestDecide_RuleMatch(t *testing.T) {
	p, rs, _ := newTestPipeline(t, fixedScorer{0.1})
	mustAddRule(t, rs, "transaction_amount > 10000", "High value - flagged for review")

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id":     "txn-1",
		"transaction_amount": 15000.0,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.IsFraud || d.FraudSource != SourceRule || d.FraudScore != 1.0 {
		t.Errorf("decision = %+v, want fraud from rule with score 1.0", d)
	}
	if d.FraudReason != "High value - flagged for review" {
		t.Errorf("reason = %q, want action text verbatim", d.FraudReason)
	}
}

func TestDecide_FirstMatchWins(t *testing.T) {
	p, rs, _ := newTestPipeline(t, fixedScorer{0.1})
	mustAddRule(t, rs, "transaction_amount > 1000", "first rule hit")
	mustAddRule(t, rs, "transaction_amount > 500", "second rule hit")

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id":     "txn-2",
		"transaction_amount": 2000.0,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.FraudReason != "first rule hit" {
		t.Errorf("reason = %q, want the lowest-id matching rule's action", d.FraudReason)
	}
}

func TestDecide_SafeAction(t *testing.T) {
	p, rs, _ := newTestPipeline(t, fixedScorer{0.99})
	mustAddRule(t, rs, "payer_browser_anonymous == 7", "customer Verified by support")

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id":          "txn-3",
		"payer_browser_anonymous": 7,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.IsFraud || d.FraudScore != 0.0 || d.FraudSource != SourceRule {
		t.Errorf("decision = %+v, want non-fraud rule decision with score 0.0", d)
	}
}

func TestDecide_BrokenRuleSkipped(t *testing.T) {
	p, rs, _ := newTestPipeline(t, fixedScorer{0.1})
	mustAddRule(t, rs, "transaction_amount >", "broken rule")
	mustAddRule(t, rs, "transaction_amount > 100", "working rule")

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id":     "txn-4",
		"transaction_amount": 500.0,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.FraudReason != "working rule" {
		t.Errorf("reason = %q, want broken rule skipped and next rule matched", d.FraudReason)
	}
}

func TestDecide_ModelFallback(t *testing.T) {
	p, _, _ := newTestPipeline(t, fixedScorer{0.23})

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id":     "txn-5",
		"transaction_amount": 50.0,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.IsFraud || d.FraudSource != SourceModel || d.FraudScore != 0.23 {
		t.Errorf("decision = %+v, want non-fraud model decision with score 0.23", d)
	}
	if d.FraudReason != "predicted by model" {
		t.Errorf("reason = %q", d.FraudReason)
	}
}

func TestDecide_ScoreRoundingAndThreshold(t *testing.T) {
	cases := []struct {
		prob      float64
		wantScore float64
		wantFraud bool
	}{
		{0.506, 0.51, true},
		{0.4999, 0.5, false}, // threshold is strict: 0.5 is not fraud
		{0.494, 0.49, false},
		{0.999, 1.0, true},
		{0.001, 0.0, false},
	}
	for _, tc := range cases {
		p, _, _ := newTestPipeline(t, fixedScorer{tc.prob})
		d, err := p.Decide(context.Background(), Transaction{
			"transaction_id": fmt.Sprintf("txn-p-%v", tc.prob),
			"amount":         1.0,
		})
		if err != nil {
			t.Fatalf("Decide(%v): %v", tc.prob, err)
		}
		if d.FraudScore != tc.wantScore || d.IsFraud != tc.wantFraud {
			t.Errorf("prob %v: score=%v fraud=%v, want score=%v fraud=%v",
				tc.prob, d.FraudScore, d.IsFraud, tc.wantScore, tc.wantFraud)
		}
	}
}

func TestDecide_DuplicateTransactionID(t *testing.T) {
	p, _, _ := newTestPipeline(t, fixedScorer{0.1})
	txn := Transaction{"transaction_id": "txn-dup", "transaction_amount": 10.0}

	if _, err := p.Decide(context.Background(), txn); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	d, err := p.Decide(context.Background(), txn)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Decide err = %v, want ErrDuplicate", err)
	}
	if d == nil {
		t.Error("second Decide should still return the computed decision")
	}
}

func TestDecide_StorageFailureStillReturnsDecision(t *testing.T) {
	rs := rules.NewMemoryStore()
	p := NewPipeline(rs, fixedScorer{0.9}, failingStore{NewMemoryStore()}, 0)

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id": "txn-6",
		"amount":         1.0,
	})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
	if d == nil || !d.IsFraud {
		t.Errorf("decision = %+v, want computed fraud decision despite storage failure", d)
	}
}

func TestDecide_MissingTransactionID(t *testing.T) {
	p, _, ds := newTestPipeline(t, fixedScorer{0.1})

	d, err := p.Decide(context.Background(), Transaction{"transaction_amount": 5.0})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.TransactionID != "unknown" {
		t.Errorf("id = %q, want %q", d.TransactionID, "unknown")
	}
	if _, err := ds.Get(context.Background(), "unknown"); err != nil {
		t.Errorf("Get(unknown): %v", err)
	}
}

func TestActionIsSafe(t *testing.T) {
	cases := []struct {
		action string
		want   bool
	}{
		{"customer verified", true},
		{"VERIFIED", true},
		{"Approved by ops", true},
		{"all good here", true},
		{"known safe merchant", true},
		{"trusted partner", true},
		{"flagged for review", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ActionIsSafe(tc.action); got != tc.want {
			t.Errorf("ActionIsSafe(%q) = %v, want %v", tc.action, got, tc.want)
		}
	}
}

func TestDecide_DefaultModelIntegration(t *testing.T) {
	rs := rules.NewMemoryStore()
	p := NewPipeline(rs, model.Default(), NewMemoryStore(), 0)

	d, err := p.Decide(context.Background(), Transaction{
		"transaction_id":      "txn-7",
		"transaction_amount":  120.0,
		"transaction_channel": "online",
		"transaction_hour":    14,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.FraudSource != SourceModel {
		t.Errorf("source = %q, want model", d.FraudSource)
	}
	if d.FraudScore < 0 || d.FraudScore > 1 {
		t.Errorf("score = %v, want in [0,1]", d.FraudScore)
	}
}
