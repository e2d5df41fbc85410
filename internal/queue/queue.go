// Package queue implements a durable work queue: a FIFO with optional
// priority, configurable attempts, exponential backoff, a dead-letter
// destination, and lease-based stall recovery. State lives in Redis so it
// survives a process restart.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultMaxAttempts is the default attempts budget per spec §4.F.
	DefaultMaxAttempts = 3

	// LeaseDuration is the lock held by a worker while processing a job.
	LeaseDuration = 120 * time.Second
	// LeaseRenewInterval is how often a worker should renew its lease.
	LeaseRenewInterval = 30 * time.Second
	// StalledCheckInterval is how often the queue looks for lapsed leases.
	StalledCheckInterval = 30 * time.Second

	// CompletedRetentionAge is the max age a completed entry is kept.
	CompletedRetentionAge = 2 * time.Hour
	// CompletedRetentionCount caps the number of completed entries kept.
	CompletedRetentionCount = 500
	// FailedRetentionAge is the max age a DLQ entry is kept.
	FailedRetentionAge = 24 * time.Hour

	keyReady      = "privacyanalyzer:queue:ready"
	keyDelayed    = "privacyanalyzer:queue:delayed"
	keyProcessing = "privacyanalyzer:queue:processing"
	keyCompleted  = "privacyanalyzer:queue:completed"
	keyFailed     = "privacyanalyzer:queue:failed"
	keyDLQ        = "privacyanalyzer:queue:dlq"
	keyPayload    = "privacyanalyzer:queue:payload:"
	keySeq        = "privacyanalyzer:queue:seq"
)

// Payload is the opaque job body carried by the queue, per spec §4.F.
type Payload struct {
	JobID    string `json:"jobId"`
	URL      string `json:"url"`
	Priority int    `json:"priority"`
	Attempts int    `json:"attempts"`
	MaxRetry int    `json:"maxRetry"`
}

// Item is a job handed to a worker by Pop.
type Item struct {
	Payload
}

// DLQRecord is the permanent record written when a job exhausts its
// attempts budget (spec §4.G).
type DLQRecord struct {
	OriginalJobID string    `json:"originalJobId"`
	JobID         string    `json:"jobId"`
	URL           string    `json:"url"`
	Error         string    `json:"error"`
	Attempts      int       `json:"attempts"`
	FailedAt      time.Time `json:"failedAt"`
}

// Queue is the Redis-backed durable work queue.
type Queue struct {
	client *redis.Client
	closed bool
	clock  func() time.Time
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client, clock: time.Now}
}

// WithClock overrides the queue's time source, used by tests that need to
// simulate backoff/lease expiry without an actual wait (a ZSET score
// comparison is application logic, not a Redis TTL, so miniredis's
// FastForward has no effect on it).
func (q *Queue) WithClock(clock func() time.Time) *Queue {
	q.clock = clock
	return q
}

// Push enqueues a new job with the default attempts budget and FIFO
// ordering within its priority tier (lower value = higher priority).
func (q *Queue) Push(ctx context.Context, jobID, url string, priority int) error {
	return q.pushWithPayload(ctx, Payload{
		JobID:    jobID,
		URL:      url,
		Priority: priority,
		Attempts: 0,
		MaxRetry: DefaultMaxAttempts,
	})
}

func (q *Queue) pushWithPayload(ctx context.Context, p Payload) error {
	seq, err := q.client.Incr(ctx, keySeq).Result()
	if err != nil {
		return fmt.Errorf("allocate sequence: %w", err)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := q.client.Set(ctx, keyPayload+p.JobID, body, 0).Err(); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	score := sortKey(p.Priority, seq)
	if err := q.client.ZAdd(ctx, keyReady, redis.Z{Score: score, Member: p.JobID}).Err(); err != nil {
		return fmt.Errorf("enqueue ready: %w", err)
	}
	return nil
}

// sortKey produces a monotonic score: priority dominates, sequence breaks
// ties so equal-priority jobs stay FIFO.
func sortKey(priority int, seq int64) float64 {
	return float64(priority)*1e15 + float64(seq)
}

// Pop removes and returns the highest-priority ready job, blocking with
// context support: poll with a bounded wait, re-checking ctx and closed
// status each iteration.
func (q *Queue) Pop(ctx context.Context) (*Item, error) {
	const pollInterval = 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if q.closed {
			return nil, nil
		}

		if err := q.promoteDelayed(ctx); err != nil {
			return nil, err
		}

		result, err := q.client.ZPopMin(ctx, keyReady, 1).Result()
		if err != nil {
			return nil, fmt.Errorf("pop ready: %w", err)
		}
		if len(result) == 0 {
			timer := time.NewTimer(pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			continue
		}

		jobID, ok := result[0].Member.(string)
		if !ok {
			continue
		}

		payload, err := q.loadPayload(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			// Payload vanished (externally deleted job); skip it silently.
			continue
		}

		deadline := float64(q.clock().Add(LeaseDuration).UnixMilli())
		if err := q.client.ZAdd(ctx, keyProcessing, redis.Z{Score: deadline, Member: jobID}).Err(); err != nil {
			return nil, fmt.Errorf("mark processing: %w", err)
		}

		return &Item{Payload: *payload}, nil
	}
}

// promoteDelayed moves delayed (backoff-scheduled) jobs whose readyAt has
// elapsed back onto the ready set.
func (q *Queue) promoteDelayed(ctx context.Context) error {
	now := float64(q.clock().UnixMilli())
	due, err := q.client.ZRangeByScore(ctx, keyDelayed, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed: %w", err)
	}
	for _, jobID := range due {
		payload, err := q.loadPayload(ctx, jobID)
		if err != nil {
			return err
		}
		if payload == nil {
			q.client.ZRem(ctx, keyDelayed, jobID)
			continue
		}
		seq, err := q.client.Incr(ctx, keySeq).Result()
		if err != nil {
			return fmt.Errorf("allocate sequence: %w", err)
		}
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, keyDelayed, jobID)
		pipe.ZAdd(ctx, keyReady, redis.Z{Score: sortKey(payload.Priority, seq), Member: jobID})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("promote delayed job: %w", err)
		}
	}
	return nil
}

func (q *Queue) loadPayload(ctx context.Context, jobID string) (*Payload, error) {
	raw, err := q.client.Get(ctx, keyPayload+jobID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &p, nil
}

// Ack marks a job as completed: removed from processing, recorded in the
// completed history for retention accounting, payload discarded.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyProcessing, jobID)
	pipe.Del(ctx, keyPayload+jobID)
	pipe.ZAdd(ctx, keyCompleted, redis.Z{Score: float64(q.clock().UnixMilli()), Member: jobID})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

// Fail reports a job execution failure. If attempts remain, the job is
// rescheduled after the backoff for its attempt number (5s, 20s); once
// attempts are exhausted it is written to the dead-letter destination.
func (q *Queue) Fail(ctx context.Context, jobID, errMsg string) (dlq bool, err error) {
	payload, err := q.loadPayload(ctx, jobID)
	if err != nil {
		return false, err
	}
	if payload == nil {
		// Job was externally removed; nothing to reschedule.
		q.client.ZRem(ctx, keyProcessing, jobID)
		return false, nil
	}

	payload.Attempts++
	q.client.ZRem(ctx, keyProcessing, jobID)

	if payload.Attempts >= payload.MaxRetry {
		record := DLQRecord{
			OriginalJobID: jobID,
			JobID:         jobID,
			URL:           payload.URL,
			Error:         errMsg,
			Attempts:      payload.Attempts,
			FailedAt:      q.clock().UTC(),
		}
		body, merr := json.Marshal(record)
		if merr != nil {
			return false, fmt.Errorf("marshal dlq record: %w", merr)
		}
		pipe := q.client.TxPipeline()
		pipe.Del(ctx, keyPayload+jobID)
		pipe.RPush(ctx, keyDLQ, body)
		pipe.ZAdd(ctx, keyFailed, redis.Z{Score: float64(q.clock().UnixMilli()), Member: jobID})
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("move to dlq: %w", err)
		}
		return true, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}
	readyAt := q.clock().Add(backoff(payload.Attempts))
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, keyPayload+jobID, body, 0)
	pipe.ZAdd(ctx, keyDelayed, redis.Z{Score: float64(readyAt.UnixMilli()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("reschedule job: %w", err)
	}
	return false, nil
}

// backoff returns the delay before retry number attemptNumber (1-indexed):
// 5s base, 20s for the second retry, escalating for anything further
// (the third failure exhausts the default attempts budget and goes to the
// DLQ before this path is reached again).
func backoff(attemptNumber int) time.Duration {
	switch attemptNumber {
	case 1:
		return 5 * time.Second
	case 2:
		return 20 * time.Second
	default:
		return 20 * time.Second * time.Duration(attemptNumber-1)
	}
}

// RenewLease extends a held job's processing lease; called every
// LeaseRenewInterval by the worker holding it.
func (q *Queue) RenewLease(ctx context.Context, jobID string) error {
	deadline := float64(q.clock().Add(LeaseDuration).UnixMilli())
	if err := q.client.ZScore(ctx, keyProcessing, jobID).Err(); err != nil {
		if err == redis.Nil {
			return fmt.Errorf("lease for job %s no longer held", jobID)
		}
		return fmt.Errorf("renew lease: %w", err)
	}
	if err := q.client.ZAddXX(ctx, keyProcessing, redis.Z{Score: deadline, Member: jobID}).Err(); err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	return nil
}

// RecoverStalled re-queues jobs whose lease has lapsed without incrementing
// their attempt counter (spec §4.F: stalled recovery is not a retry).
// Returns the job IDs that were recovered.
func (q *Queue) RecoverStalled(ctx context.Context) ([]string, error) {
	now := float64(q.clock().UnixMilli())
	stalled, err := q.client.ZRangeByScore(ctx, keyProcessing, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan processing: %w", err)
	}

	var recovered []string
	for _, jobID := range stalled {
		payload, err := q.loadPayload(ctx, jobID)
		if err != nil {
			return recovered, err
		}
		if payload == nil {
			q.client.ZRem(ctx, keyProcessing, jobID)
			continue
		}
		seq, err := q.client.Incr(ctx, keySeq).Result()
		if err != nil {
			return recovered, fmt.Errorf("allocate sequence: %w", err)
		}
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, keyProcessing, jobID)
		pipe.ZAdd(ctx, keyReady, redis.Z{Score: sortKey(payload.Priority, seq), Member: jobID})
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("requeue stalled job: %w", err)
		}
		recovered = append(recovered, jobID)
	}
	return recovered, nil
}

// Len returns the number of jobs currently ready or delayed.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	ready, err := q.client.ZCard(ctx, keyReady).Result()
	if err != nil {
		return 0, fmt.Errorf("count ready: %w", err)
	}
	delayed, err := q.client.ZCard(ctx, keyDelayed).Result()
	if err != nil {
		return 0, fmt.Errorf("count delayed: %w", err)
	}
	return ready + delayed, nil
}

// Close marks the queue closed; in-progress Pop calls observe it on their
// next poll iteration and return nil, nil.
func (q *Queue) Close() {
	q.closed = true
}
