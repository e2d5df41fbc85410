package dedup

import (
	"context"
	"time"

	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
)

// Outcome tells the ingress front end what admission should do next.
type Outcome int

const (
	// OutcomeProceed means no existing job covers this URL; the caller
	// should create a new Job and enqueue it.
	OutcomeProceed Outcome = iota
	// OutcomeCachedSuccess means a prior SUCCESS Job within the window was
	// found; return it without enqueueing (spec scenario 5).
	OutcomeCachedSuccess
	// OutcomeInFlight means another admission is racing or a job is
	// already PENDING/RUNNING for this URL (spec scenario 6).
	OutcomeInFlight
)

// Decision is the coordinator's verdict for one admission attempt.
type Decision struct {
	Outcome Outcome
	Job     *jobstore.Job // populated for OutcomeCachedSuccess / OutcomeInFlight when a job is found
}

// Coordinator implements the two-level dedup policy of spec §4.D.
type Coordinator struct {
	store Store
	jobs  jobstore.Store
}

// New constructs a Coordinator.
func New(store Store, jobs jobstore.Store) *Coordinator {
	return &Coordinator{store: store, jobs: jobs}
}

// Admit evaluates the two-level policy for canonicalURL. OutcomeProceed is
// returned either when this call acquired the in-flight lock, or when the
// lock is held by another admission but no active Job is visible yet; in
// the second case this call does not hold the lock. The caller must call
// Release if Job creation subsequently fails (spec §4.D).
func (c *Coordinator) Admit(ctx context.Context, canonicalURL string) (Decision, error) {
	since := time.Now().Add(-Window)
	if job, err := c.jobs.FindRecentSuccess(ctx, canonicalURL, since); err != nil {
		return Decision{}, err
	} else if job != nil {
		return Decision{Outcome: OutcomeCachedSuccess, Job: job}, nil
	}

	acquired, err := c.store.Acquire(ctx, canonicalURL)
	if err != nil {
		return Decision{}, err
	}
	if acquired {
		return Decision{Outcome: OutcomeProceed}, nil
	}

	// Lock already held by a racing admission: find the job it is
	// (or will be) enqueuing for.
	active, err := c.jobs.FindActive(ctx, canonicalURL)
	if err != nil {
		return Decision{}, err
	}
	if active != nil {
		return Decision{Outcome: OutcomeInFlight, Job: active}, nil
	}

	// Lock held but no visible job yet: the caller proceeds to enqueue
	// without re-acquiring (another process holds the lock and is in the
	// process of writing its Job row).
	return Decision{Outcome: OutcomeProceed}, nil
}

// Release frees the in-flight key, called when Job creation or enqueue
// fails after Admit returned OutcomeProceed (spec §4.D).
func (c *Coordinator) Release(ctx context.Context, canonicalURL string) error {
	return c.store.Release(ctx, canonicalURL)
}
