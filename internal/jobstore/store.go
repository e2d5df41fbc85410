// Package jobstore (continued): the Store interface and its PostgreSQL
// implementation. Store is an interface so the worker pool, poll API, and
// dedup coordinator can all depend on it without caring about the backing
// RDBMS.
package jobstore

import (
	"context"
	"time"
)

// ErrNotFound is returned by FindByID when no row matches.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return "job not found: " + e.ID }

// ErrConflict is returned by Delete when the job is RUNNING.
type ErrConflict struct{ ID string }

func (e *ErrConflict) Error() string { return "job is running, cannot delete: " + e.ID }

// ListFilter narrows List/history queries per spec §4.K.
type ListFilter struct {
	TargetURL string
	Status    Status
}

// Store is the Job Store's operation set per spec §4.E.
type Store interface {
	Create(ctx context.Context, targetURL string, userID *string) (*Job, error)
	Transition(ctx context.Context, id string, from, to Status, fields TransitionFields) (*Job, error)
	FindRecentSuccess(ctx context.Context, targetURL string, since time.Time) (*Job, error)
	FindActive(ctx context.Context, targetURL string) (*Job, error)
	FindByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, filter ListFilter, page, limit int) (Page, error)
	Delete(ctx context.Context, id string) error

	// CompleteSuccess atomically transitions a job to SUCCESS and creates
	// its Result row in a single transaction, per spec §4.E/§4.G.
	CompleteSuccess(ctx context.Context, jobID string, result *Result) error
	// GetResult returns the Result row for a SUCCESS job, if any.
	GetResult(ctx context.Context, jobID string) (*Result, error)
}

// TransitionFields carries the optional field updates that accompany a
// status transition (startedAt, completedAt, errorMessage, attemptCount).
type TransitionFields struct {
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
	AttemptCount *int
}
