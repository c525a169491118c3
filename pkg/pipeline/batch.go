package pipeline

import (
	"context"
	"sync"
	"time"
)

// BatchMode selects how BatchExecute paces work across articles
// (spec.md §4.12: "iterate sequentially with a configurable delay, or
// run under a bounded concurrency semaphore").
type BatchMode int

const (
	// BatchSequential runs one article at a time, sleeping Delay
	// between each (0 disables the sleep).
	BatchSequential BatchMode = iota
	// BatchConcurrent runs up to Concurrency articles at once.
	BatchConcurrent
)

// BatchOptions configures BatchExecute.
type BatchOptions struct {
	Mode        BatchMode
	Delay       time.Duration // only used in BatchSequential
	Concurrency int           // only used in BatchConcurrent; <=0 defaults to 1
}

// BatchSummary accumulates per-article outcomes across a batch run.
type BatchSummary struct {
	Approved int
	Rejected int
	Skipped  int
	Errored  int
	Results  []*Result
}

// BatchExecute runs Execute over every article per opts, accumulating
// counts of approved/rejected/skipped/errors as spec.md §4.12 requires.
func (o *Orchestrator) BatchExecute(ctx context.Context, articles []ArticleInput, skipStages map[string]bool, opts BatchOptions) *BatchSummary {
	summary := &BatchSummary{Results: make([]*Result, len(articles))}

	record := func(idx int, result *Result, err error) {
		if err != nil {
			summary.Errored++
			return
		}
		summary.Results[idx] = result
		switch result.FinalDecision {
		case "completed":
			summary.Approved++
		case "rejected":
			summary.Rejected++
		case "skipped":
			summary.Skipped++
		default:
			summary.Errored++
		}
	}

	switch opts.Mode {
	case BatchConcurrent:
		concurrency := opts.Concurrency
		if concurrency <= 0 {
			concurrency = 1
		}
		sem := make(chan struct{}, concurrency)
		var mu sync.Mutex
		var wg sync.WaitGroup

		for i, article := range articles {
			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, a ArticleInput) {
				defer wg.Done()
				defer func() { <-sem }()
				result, err := o.Execute(ctx, a, skipStages)
				mu.Lock()
				record(idx, result, err)
				mu.Unlock()
			}(i, article)
		}
		wg.Wait()

	default: // BatchSequential
		for i, article := range articles {
			result, err := o.Execute(ctx, article, skipStages)
			record(i, result, err)
			if opts.Delay > 0 && i < len(articles)-1 {
				select {
				case <-ctx.Done():
					return summary
				case <-time.After(opts.Delay):
				}
			}
		}
	}

	return summary
}
