// Package batch runs variance estimations for many strategies in parallel
// over a fixed-size worker pool. Results preserve input order and each job's
// failure is scoped to that job.
package batch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantfold/riskdecomp/internal/modules/variance"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 10

// EstimateJob is one strategy's estimation request. An empty Method selects
// the best method automatically.
type EstimateJob struct {
	StrategyID string
	Returns    []float64
	Method     variance.Method
}

// EstimateResult pairs a job with its outcome. Exactly one of Estimate and
// Err is meaningful.
type EstimateResult struct {
	StrategyID string
	Estimate   variance.Estimate
	Err        error
}

// ProgressFunc is invoked after each completed job with the number of jobs
// done so far and the total. Calls may come from any worker goroutine.
type ProgressFunc func(done, total int)

// Pool distributes estimation jobs across worker goroutines.
type Pool struct {
	numWorkers int
	estimator  *variance.Estimator
	log        zerolog.Logger
}

// NewPool creates a pool backed by the given estimator. numWorkers <= 0
// selects the default.
func NewPool(numWorkers int, estimator *variance.Estimator, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &Pool{
		numWorkers: numWorkers,
		estimator:  estimator,
		log:        log.With().Str("component", "batch").Logger(),
	}
}

type jobItem struct {
	index int
	job   EstimateJob
}

type resultItem struct {
	index  int
	result EstimateResult
}

// EstimateAll runs every job and returns results in input order. A job that
// fails yields a result with Err set; sibling jobs are unaffected. Jobs not
// yet started when ctx is cancelled report ctx.Err().
func (p *Pool) EstimateAll(ctx context.Context, jobs []EstimateJob, progress ProgressFunc) []EstimateResult {
	total := len(jobs)
	if total == 0 {
		return []EstimateResult{}
	}

	jobCh := make(chan jobItem, total)
	resultCh := make(chan resultItem, total)

	workers := p.numWorkers
	if total < workers {
		workers = total
	}

	done := 0
	var doneMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobCh {
				resultCh <- resultItem{
					index:  item.index,
					result: p.runJob(ctx, item.job),
				}
				if progress != nil {
					doneMu.Lock()
					done++
					progress(done, total)
					doneMu.Unlock()
				}
			}
		}()
	}

	for idx, job := range jobs {
		jobCh <- jobItem{index: idx, job: job}
	}
	close(jobCh)

	wg.Wait()
	close(resultCh)

	results := make([]EstimateResult, total)
	for item := range resultCh {
		results[item.index] = item.result
	}

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	p.log.Debug().
		Int("jobs", total).
		Int("workers", workers).
		Int("failures", failures).
		Msg("Completed estimation batch")

	return results
}

func (p *Pool) runJob(ctx context.Context, job EstimateJob) EstimateResult {
	if err := ctx.Err(); err != nil {
		return EstimateResult{StrategyID: job.StrategyID, Err: err}
	}

	var est variance.Estimate
	var err error
	if job.Method == "" {
		est, err = p.estimator.SelectBest(job.Returns, nil)
	} else {
		est, err = p.estimator.Estimate(job.Returns, job.Method)
	}
	if err != nil {
		p.log.Warn().
			Str("strategy", job.StrategyID).
			Err(err).
			Msg("Estimation job failed")
		return EstimateResult{StrategyID: job.StrategyID, Err: err}
	}
	return EstimateResult{StrategyID: job.StrategyID, Estimate: est}
}
