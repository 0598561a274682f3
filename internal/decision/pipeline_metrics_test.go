package decision

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mbd888/fraudgate/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.Counter.GetValue()
}

func histogramSamples(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.Histogram.GetSampleCount()
}

func TestDecide_IncrementsDecisionCounter(t *testing.T) {
	metrics.DecisionsTotal.Reset()

	p, rs, _ := newTestPipeline(t, fixedScorer{0.1})
	mustAddRule(t, rs, "transaction_amount > 100", "over limit")

	txn := Transaction{"transaction_id": "m-1", "transaction_amount": 500.0}
	if _, err := p.Decide(context.Background(), txn); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	counter, err := metrics.DecisionsTotal.GetMetricWithLabelValues("rule", "fraud")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if got := counterValue(t, counter); got != 1.0 {
		t.Errorf("decisions counter = %f, want 1", got)
	}
}

func TestDecide_RuleMatchCounter(t *testing.T) {
	p, rs, _ := newTestPipeline(t, fixedScorer{0.1})
	mustAddRule(t, rs, "transaction_amount > 100", "over limit")

	before := counterValue(t, metrics.RuleMatchesTotal)

	txn := Transaction{"transaction_id": "m-2", "transaction_amount": 500.0}
	if _, err := p.Decide(context.Background(), txn); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if got := counterValue(t, metrics.RuleMatchesTotal); got != before+1 {
		t.Errorf("rule match counter = %f, want %f", got, before+1)
	}
}

func TestDecide_ObservesModelScore(t *testing.T) {
	p, _, _ := newTestPipeline(t, fixedScorer{0.42})

	before := histogramSamples(t, metrics.ModelScore)

	txn := Transaction{"transaction_id": "m-3", "transaction_amount": 10.0}
	if _, err := p.Decide(context.Background(), txn); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if got := histogramSamples(t, metrics.ModelScore); got != before+1 {
		t.Errorf("model score samples = %d, want %d", got, before+1)
	}
}

func TestDecide_BrokenRuleErrorCounter(t *testing.T) {
	p, rs, _ := newTestPipeline(t, fixedScorer{0.1})
	// Bypass handler-level validation so the evaluator sees a broken condition.
	mustAddRule(t, rs, "transaction_amount >", "broken")

	before := counterValue(t, metrics.RuleEvalErrorsTotal)

	txn := Transaction{"transaction_id": "m-4", "transaction_amount": 500.0}
	if _, err := p.Decide(context.Background(), txn); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if got := counterValue(t, metrics.RuleEvalErrorsTotal); got != before+1 {
		t.Errorf("rule eval error counter = %f, want %f", got, before+1)
	}
}
