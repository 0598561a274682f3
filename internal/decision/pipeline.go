package decision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mbd888/fraudgate/internal/condition"
	"github.com/mbd888/fraudgate/internal/features"
	"github.com/mbd888/fraudgate/internal/logging"
	"github.com/mbd888/fraudgate/internal/metrics"
	"github.com/mbd888/fraudgate/internal/model"
	"github.com/mbd888/fraudgate/internal/rules"
	"github.com/mbd888/fraudgate/internal/traces"
)

// Feed receives every decision the pipeline produces, on top of persistence.
// Used for the realtime WebSocket stream; delivery is fire-and-forget.
type Feed interface {
	PublishDecision(d *Decision)
}

// Pipeline orchestrates one fraud decision per transaction: active rules in
// ascending-id order first (first match wins), classifier fallback when none
// match. The pipeline holds no mutable state of its own and is safe for
// concurrent use.
type Pipeline struct {
	rules     rules.Store
	scorer    model.Scorer
	store     Store
	threshold float64
	feed      Feed
}

// NewPipeline creates a decision pipeline. A threshold <= 0 falls back to
// DefaultThreshold.
func NewPipeline(ruleStore rules.Store, scorer model.Scorer, store Store, threshold float64) *Pipeline {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Pipeline{
		rules:     ruleStore,
		scorer:    scorer,
		store:     store,
		threshold: threshold,
	}
}

// AttachFeed wires a realtime feed into the pipeline. Call before serving.
func (p *Pipeline) AttachFeed(f Feed) {
	p.feed = f
}

// Decide runs one transaction through the pipeline and persists the outcome.
//
// The decision is returned even when persistence fails: a non-nil Decision
// alongside a non-nil error means "decided, but the record may not be
// durable". ErrDuplicate means this transaction id was already decided.
func (p *Pipeline) Decide(ctx context.Context, txn Transaction) (*Decision, error) {
	if len(txn) == 0 {
		return nil, ErrInvalidInput
	}
	ctx, span := traces.StartSpan(ctx, "pipeline.decide", traces.TransactionID(txn.ID()))
	defer span.End()

	snapshot, err := p.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading rules: %v", ErrStorageUnavailable, err)
	}
	d, err := p.decideWith(ctx, txn, snapshot)
	if d != nil {
		span.SetAttributes(traces.FraudSource(d.FraudSource), traces.FraudScore(d.FraudScore))
	}
	return d, err
}

// decideWith is Decide against a pre-loaded rule snapshot. The batch runner
// uses it directly so every item in a batch sees the same rules.
func (p *Pipeline) decideWith(ctx context.Context, txn Transaction, snapshot []rules.Rule) (*Decision, error) {
	if len(txn) == 0 {
		return nil, ErrInvalidInput
	}

	d, err := p.classify(ctx, txn, snapshot)
	if err != nil {
		return nil, err
	}
	metrics.DecisionsTotal.WithLabelValues(d.FraudSource, outcome(d.IsFraud)).Inc()

	if err := p.store.Record(ctx, d, features.Amount(txn)); err != nil {
		if errors.Is(err, ErrDuplicate) {
			metrics.DuplicateDecisionsTotal.Inc()
			return d, ErrDuplicate
		}
		logging.L(ctx).Error("failed to persist decision",
			"transaction_id", d.TransactionID,
			"error", err)
		return d, err
	}

	if p.feed != nil {
		p.feed.PublishDecision(d)
	}
	return d, nil
}

// classify produces the decision without side effects on storage.
func (p *Pipeline) classify(ctx context.Context, txn Transaction, snapshot []rules.Rule) (*Decision, error) {
	id := txn.ID()

	for _, r := range snapshot {
		match, err := condition.Evaluate(r.Condition, txn)
		if err != nil {
			// One broken rule must never block fraud detection: skip it
			// and keep going.
			metrics.RuleEvalErrorsTotal.Inc()
			logging.L(ctx).Warn("rule condition failed to evaluate, skipping",
				"rule_id", r.ID,
				"error", err)
			continue
		}
		if !match {
			continue
		}

		metrics.RuleMatchesTotal.Inc()
		safe := ActionIsSafe(r.Action)
		score := 1.0
		if safe {
			score = 0.0
		}
		return &Decision{
			TransactionID: id,
			IsFraud:       !safe,
			FraudSource:   SourceRule,
			FraudReason:   r.Action,
			FraudScore:    score,
			DecidedAt:     time.Now().UTC(),
		}, nil
	}

	prob, err := p.scorer.Predict(features.Encode(txn))
	if err != nil {
		return nil, fmt.Errorf("scoring transaction %s: %w", id, err)
	}
	metrics.ModelScore.Observe(prob)

	score := math.Round(prob*100) / 100
	return &Decision{
		TransactionID: id,
		IsFraud:       score > p.threshold,
		FraudSource:   SourceModel,
		FraudReason:   modelReason,
		FraudScore:    score,
		DecidedAt:     time.Now().UTC(),
	}, nil
}

func outcome(isFraud bool) string {
	if isFraud {
		return "fraud"
	}
	return "legit"
}
