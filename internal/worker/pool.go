// Package worker implements a fixed pool of goroutines draining the work
// queue, invoking the crawl engine and analysis pipeline for each job, and
// persisting the outcome through the job store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/analysis"
	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
	"github.com/privacyanalyzer/privacyanalyzer/internal/queue"
)

// popTimeout bounds each Pop(ctx) call so the worker can check for
// shutdown between attempts.
const popTimeout = 5 * time.Second

// Crawler runs the full per-URL crawl lifecycle. Satisfied by
// *crawl.Engine.
type Crawler interface {
	Crawl(ctx context.Context, targetURL string) (*crawl.Artifact, error)
}

// Analyzer runs the Analysis Pipeline over a crawl artifact. Satisfied by
// *analysis.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, artifact *crawl.Artifact) (*jobstore.Result, error)
}

// Metrics receives per-job outcome counters and duration samples
// (component J wiring); nil-safe for tests that don't care about metrics.
type Metrics interface {
	IncJobStarted()
	IncJobSucceeded()
	IncJobFailed()
	IncJobDLQ()
	ObserveJobDuration(d time.Duration)
}

// Pool runs a fixed number of worker goroutines against a shared Queue.
type Pool struct {
	queue    *queue.Queue
	store    jobstore.Store
	crawler  Crawler
	analyzer Analyzer
	logger   arbor.ILogger
	metrics  Metrics
	size     int

	wg sync.WaitGroup
}

// New constructs a Pool with the given concurrency. metrics may be nil.
func New(q *queue.Queue, store jobstore.Store, crawler Crawler, analyzer Analyzer, logger arbor.ILogger, metrics Metrics, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Pool{queue: q, store: store, crawler: crawler, analyzer: analyzer, logger: logger, metrics: metrics, size: size}
}

// Start launches the worker goroutines. Each exits when ctx is cancelled
// or the queue is closed. It also launches a goroutine that re-queues jobs
// with lapsed leases every queue.StalledCheckInterval until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(queue.StalledCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = p.queue.RecoverStalled(ctx)
			}
		}
	}()
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, index int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		popCtx, cancel := context.WithTimeout(ctx, popTimeout)
		item, err := p.queue.Pop(popCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Pop timeout with no item: loop and try again.
			continue
		}
		if item == nil {
			return
		}

		p.processJob(ctx, index, item)
	}
}

func (p *Pool) processJob(ctx context.Context, workerIndex int, item *queue.Item) {
	log := p.logger.WithContextWriter(item.JobID)
	start := time.Now()
	p.metrics.IncJobStarted()

	job, err := p.store.FindByID(ctx, item.JobID)
	if err != nil {
		var notFound *jobstore.ErrNotFound
		if errors.As(err, &notFound) {
			log.Info().Str("job_id", item.JobID).Msg("job was deleted, treating as no-op success")
			_ = p.queue.Ack(ctx, item.JobID)
			return
		}
		log.Warn().Err(err).Str("job_id", item.JobID).Msg("failed to look up job row")
		_, _ = p.queue.Fail(ctx, item.JobID, fmt.Sprintf("job lookup failed: %v", err))
		return
	}
	if job.Status != jobstore.StatusPending && job.Status != jobstore.StatusRunning {
		log.Debug().Str("job_id", item.JobID).Str("status", string(job.Status)).Msg("job already terminal, skipping")
		_ = p.queue.Ack(ctx, item.JobID)
		return
	}

	now := time.Now()
	if _, err := p.store.Transition(ctx, item.JobID, job.Status, jobstore.StatusRunning, jobstore.TransitionFields{StartedAt: &now}); err != nil {
		log.Warn().Err(err).Str("job_id", item.JobID).Msg("failed to transition job to RUNNING")
	}

	stop := make(chan struct{})
	leaseErrs := make(chan error, 1)
	go p.queue.RunLeaseRenewer(ctx, item.JobID, stop, leaseErrs)
	defer close(stop)

	artifact, err := p.crawler.Crawl(ctx, item.URL)
	if err != nil {
		p.failJob(ctx, log, item, job, err, start)
		return
	}

	result, err := p.analyzer.Analyze(ctx, artifact)
	if err != nil {
		p.failJob(ctx, log, item, job, err, start)
		return
	}
	result.ScanJobID = item.JobID

	if err := p.store.CompleteSuccess(ctx, item.JobID, result); err != nil {
		p.failJob(ctx, log, item, job, err, start)
		return
	}

	if err := p.queue.Ack(ctx, item.JobID); err != nil {
		log.Warn().Err(err).Str("job_id", item.JobID).Msg("failed to ack completed queue item")
	}

	p.metrics.IncJobSucceeded()
	p.metrics.ObserveJobDuration(time.Since(start))
	log.Info().Str("job_id", item.JobID).Str("url", item.URL).Dur("duration", time.Since(start)).Int("score", result.Score).Msg("job completed")
}

func (p *Pool) failJob(ctx context.Context, log arbor.ILogger, item *queue.Item, job *jobstore.Job, cause error, start time.Time) {
	errMsg := cause.Error()
	if len(errMsg) > jobstore.MaxErrorMessageLen {
		errMsg = errMsg[:jobstore.MaxErrorMessageLen]
	}

	dlq, err := p.queue.Fail(ctx, item.JobID, errMsg)
	if err != nil {
		log.Error().Err(err).Str("job_id", item.JobID).Msg("failed to record queue failure")
	}

	if dlq {
		now := time.Now()
		attempts := job.AttemptCount + 1
		if _, err := p.store.Transition(ctx, item.JobID, jobstore.StatusRunning, jobstore.StatusFailed, jobstore.TransitionFields{
			CompletedAt:  &now,
			ErrorMessage: &errMsg,
			AttemptCount: &attempts,
		}); err != nil {
			log.Error().Err(err).Str("job_id", item.JobID).Msg("failed to transition job to FAILED")
		}
		p.metrics.IncJobDLQ()
		p.metrics.IncJobFailed()
		log.Error().Err(cause).Str("job_id", item.JobID).Str("url", item.URL).Msg("job failed permanently, sent to DLQ")
		return
	}

	attempts := job.AttemptCount + 1
	if _, err := p.store.Transition(ctx, item.JobID, jobstore.StatusRunning, jobstore.StatusPending, jobstore.TransitionFields{
		ErrorMessage: &errMsg,
		AttemptCount: &attempts,
	}); err != nil {
		log.Error().Err(err).Str("job_id", item.JobID).Msg("failed to transition job back to PENDING for retry")
	}
	p.metrics.IncJobFailed()
	log.Warn().Err(cause).Str("job_id", item.JobID).Str("url", item.URL).Msg("job failed, scheduled for retry")
}

type noopMetrics struct{}

func (noopMetrics) IncJobStarted()                    {}
func (noopMetrics) IncJobSucceeded()                  {}
func (noopMetrics) IncJobFailed()                     {}
func (noopMetrics) IncJobDLQ()                        {}
func (noopMetrics) ObserveJobDuration(time.Duration)  {}
