// Package jobstoretest provides an in-memory jobstore.Store fake for tests
// of packages that depend on the Job Store (dedup, worker, api) without a
// real PostgreSQL instance.
package jobstoretest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
)

// Fake is a goroutine-safe in-memory jobstore.Store.
type Fake struct {
	mu      sync.Mutex
	jobs    map[string]*jobstore.Job
	results map[string]*jobstore.Result
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{
		jobs:    make(map[string]*jobstore.Job),
		results: make(map[string]*jobstore.Result),
	}
}

func clone(j *jobstore.Job) *jobstore.Job {
	c := *j
	return &c
}

func (f *Fake) Create(ctx context.Context, targetURL string, userID *string) (*jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := &jobstore.Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		TargetURL: targetURL,
		Status:    jobstore.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	f.jobs[j.ID] = j
	return clone(j), nil
}

func (f *Fake) Transition(ctx context.Context, id string, from, to jobstore.Status, fields jobstore.TransitionFields) (*jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, &jobstore.ErrNotFound{ID: id}
	}
	if j.Status != from {
		return nil, &jobstore.ErrConflict{ID: id}
	}
	j.Status = to
	if fields.StartedAt != nil {
		j.StartedAt = fields.StartedAt
	}
	if fields.CompletedAt != nil {
		j.CompletedAt = fields.CompletedAt
	}
	if fields.ErrorMessage != nil {
		j.ErrorMessage = *fields.ErrorMessage
	}
	if fields.AttemptCount != nil {
		j.AttemptCount = *fields.AttemptCount
	}
	return clone(j), nil
}

func (f *Fake) FindRecentSuccess(ctx context.Context, targetURL string, since time.Time) (*jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *jobstore.Job
	for _, j := range f.jobs {
		if j.TargetURL != targetURL || j.Status != jobstore.StatusSuccess {
			continue
		}
		if j.CompletedAt == nil || j.CompletedAt.Before(since) {
			continue
		}
		if best == nil || j.CompletedAt.After(*best.CompletedAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	return clone(best), nil
}

func (f *Fake) FindActive(ctx context.Context, targetURL string) (*jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *jobstore.Job
	for _, j := range f.jobs {
		if j.TargetURL != targetURL {
			continue
		}
		if j.Status != jobstore.StatusPending && j.Status != jobstore.StatusRunning {
			continue
		}
		if best == nil || j.CreatedAt.After(best.CreatedAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	return clone(best), nil
}

func (f *Fake) FindByID(ctx context.Context, id string) (*jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, &jobstore.ErrNotFound{ID: id}
	}
	return clone(j), nil
}

func (f *Fake) List(ctx context.Context, filter jobstore.ListFilter, page, limit int) (jobstore.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, limit = jobstore.NormalizePage(page, limit)

	var matched []*jobstore.Job
	for _, j := range f.jobs {
		if filter.TargetURL != "" && j.TargetURL != filter.TargetURL {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		matched = append(matched, clone(j))
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return jobstore.BuildPage(matched[start:end], len(matched), page, limit), nil
}

func (f *Fake) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return &jobstore.ErrNotFound{ID: id}
	}
	if j.Status == jobstore.StatusRunning {
		return &jobstore.ErrConflict{ID: id}
	}
	delete(f.jobs, id)
	delete(f.results, id)
	return nil
}

func (f *Fake) CompleteSuccess(ctx context.Context, jobID string, result *jobstore.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return &jobstore.ErrNotFound{ID: jobID}
	}
	if j.Status != jobstore.StatusRunning {
		return &jobstore.ErrConflict{ID: jobID}
	}
	result.ScanJobID = jobID
	if err := result.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.Status = jobstore.StatusSuccess
	j.CompletedAt = &now
	result.ID = uuid.NewString()
	result.CreatedAt = now
	f.results[jobID] = result
	return nil
}

func (f *Fake) GetResult(ctx context.Context, jobID string) (*jobstore.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[jobID]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

// BackdateCompletion rewrites a job's CompletedAt, for tests that need to
// exercise dedup window-expiry without sleeping.
func (f *Fake) BackdateCompletion(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.CompletedAt = &at
	}
}

var _ jobstore.Store = (*Fake)(nil)
