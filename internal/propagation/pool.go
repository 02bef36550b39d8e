package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hamsat/skytrack/internal/transform"
)

// batchJob is a unit of work for the worker pool.
type batchJob struct {
	prop   *Propagator
	target time.Time
}

// BatchResult is the state of one satellite propagated to the batch target.
type BatchResult struct {
	CatalogNumber int
	State         transform.StateVector
}

type batchOutcome struct {
	result  BatchResult
	err     error
	catalog int
}

// Pool runs SGP4 propagation for many satellites in parallel across a fixed
// number of goroutines. Failed satellites are logged and skipped; one decayed
// or inconsistent satellite never aborts the batch.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, logger: logger}
}

// PropagateBatch propagates all satellites to the target time.
// Returns the successful states plus success and error counts.
func (p *Pool) PropagateBatch(ctx context.Context, props []*Propagator, target time.Time) ([]BatchResult, int, int) {
	if len(props) == 0 {
		return nil, 0, 0
	}

	jobs := make(chan batchJob, p.workers*2)
	outcomes := make(chan batchOutcome, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				sv, err := job.prop.Propagate(job.target)
				out := batchOutcome{
					catalog: job.prop.Elements().CatalogNumber,
					err:     err,
					result: BatchResult{
						CatalogNumber: job.prop.Elements().CatalogNumber,
						State:         sv,
					},
				}
				select {
				case outcomes <- out:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, prop := range props {
			select {
			case jobs <- batchJob{prop: prop, target: target}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]BatchResult, 0, len(props))
	var successCount, errorCount int
	for out := range outcomes {
		if out.err != nil {
			errorCount++
			p.logger.Warn("propagation failed", "catalog_number", out.catalog, "error", out.err)
			continue
		}
		successCount++
		results = append(results, out.result)
	}

	return results, successCount, errorCount
}
