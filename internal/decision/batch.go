package decision

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbd888/fraudgate/internal/metrics"
	"github.com/mbd888/fraudgate/internal/traces"
)

// BatchResult is the outcome for one position in a batch. Exactly one of
// Decision or Error is meaningful; a persistence failure yields both (the
// decision was made but may not be durable).
type BatchResult struct {
	Decision *Decision `json:"decision,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// RunBatch decides a list of transactions, returning one result per input in
// input order. The rule snapshot is loaded once and shared by every item, so
// a concurrent rule edit cannot split a batch into before/after halves.
// Items are processed by a bounded worker pool; a failure on one item never
// aborts the rest. If ctx is cancelled mid-batch, unprocessed positions carry
// the cancellation error (best-effort, partial result).
func (p *Pipeline) RunBatch(ctx context.Context, txns []Transaction, workers int) []BatchResult {
	results := make([]BatchResult, len(txns))
	if len(txns) == 0 {
		return results
	}
	ctx, span := traces.StartSpan(ctx, "pipeline.batch", traces.BatchSize(len(txns)))
	defer span.End()
	metrics.BatchSize.Observe(float64(len(txns)))

	snapshot, err := p.rules.ListActive(ctx)
	if err != nil {
		msg := fmt.Sprintf("%v: loading rules: %v", ErrStorageUnavailable, err)
		for i := range results {
			results[i] = BatchResult{Error: msg}
		}
		return results
	}

	if workers <= 0 {
		workers = 4
	}
	if workers > len(txns) {
		workers = len(txns)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				d, err := p.decideWith(ctx, txns[i], snapshot)
				switch {
				case err != nil && d != nil:
					results[i] = BatchResult{Decision: d, Error: err.Error()}
				case err != nil:
					results[i] = BatchResult{Error: err.Error()}
				default:
					results[i] = BatchResult{Decision: d}
				}
			}
		}()
	}

dispatch:
	for i := range txns {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// indices >= i were never dispatched, no worker touches them
			for j := i; j < len(txns); j++ {
				results[j] = BatchResult{Error: ctx.Err().Error()}
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
