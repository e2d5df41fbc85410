package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore/jobstoretest"
	"github.com/privacyanalyzer/privacyanalyzer/internal/queue"
)

type fakeCrawler struct {
	artifact *crawl.Artifact
	err      error
}

func (f *fakeCrawler) Crawl(ctx context.Context, targetURL string) (*crawl.Artifact, error) {
	return f.artifact, f.err
}

type fakeAnalyzer struct {
	result *jobstore.Result
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, artifact *crawl.Artifact) (*jobstore.Result, error) {
	return f.result, f.err
}

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return queue.New(client)
}

func TestPool_ProcessesJobToSuccess(t *testing.T) {
	q := newTestQueue(t)
	store := jobstoretest.New()
	job, err := store.Create(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := q.Push(context.Background(), job.ID, job.TargetURL, 0); err != nil {
		t.Fatalf("push: %v", err)
	}

	crawler := &fakeCrawler{artifact: &crawl.Artifact{TargetURL: job.TargetURL, IsHTTPS: true}}
	analyzer := &fakeAnalyzer{result: &jobstore.Result{Score: 90, RiskLevel: jobstore.RiskLow}}

	pool := New(q, store, crawler, analyzer, arbor.NewLogger(), nil, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pool.Start(ctx)

	waitForTerminal(t, store, job.ID, jobstore.StatusSuccess)

	got, err := store.FindByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != jobstore.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}

	result, err := store.GetResult(context.Background(), job.ID)
	if err != nil || result == nil {
		t.Fatalf("expected a persisted result, err=%v", err)
	}
	if result.Score != 90 {
		t.Fatalf("expected score 90, got %d", result.Score)
	}
}

func TestPool_ReschedulesToPendingOnCrawlFailure(t *testing.T) {
	// This exercises only the first failure: the queue's real backoff
	// schedule (5s/20s) makes waiting out a full DLQ cycle too slow for a
	// unit test, so this asserts the immediate retry transition instead.
	q := newTestQueue(t)
	store := jobstoretest.New()
	job, err := store.Create(context.Background(), "https://unreachable.example", nil)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := q.Push(context.Background(), job.ID, job.TargetURL, 0); err != nil {
		t.Fatalf("push: %v", err)
	}

	crawler := &fakeCrawler{err: fmt.Errorf("UNREACHABLE:no_response:%s", job.TargetURL)}
	analyzer := &fakeAnalyzer{}

	pool := New(q, store, crawler, analyzer, arbor.NewLogger(), nil, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pool.Start(ctx)

	waitForAttempt(t, store, job.ID, 1)

	got, err := store.FindByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != jobstore.StatusPending {
		t.Fatalf("expected job rescheduled to PENDING, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected an error message recorded on the retry")
	}
}

func TestPool_TreatsDeletedJobAsNoOpSuccess(t *testing.T) {
	q := newTestQueue(t)
	store := jobstoretest.New()
	// Push a queue item for a job ID the store has never seen (equivalent
	// to the job row having been deleted between submission and pickup).
	if err := q.Push(context.Background(), "missing-job", "https://example.com", 0); err != nil {
		t.Fatalf("push: %v", err)
	}

	crawler := &fakeCrawler{err: fmt.Errorf("should not be invoked")}
	analyzer := &fakeAnalyzer{}

	pool := New(q, store, crawler, analyzer, arbor.NewLogger(), nil, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	pool.Start(ctx)
	pool.Wait()

	n, err := q.Len(context.Background())
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected the missing job's queue item acked and not retried, got %d items remaining", n)
	}
}

func waitForAttempt(t *testing.T, store *jobstoretest.Fake, jobID string, want int) {
	t.Helper()
	deadline := time.Now().Add(1800 * time.Millisecond)
	for time.Now().Before(deadline) {
		job, err := store.FindByID(context.Background(), jobID)
		if err == nil && job.AttemptCount >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s to reach attempt %d", jobID, want)
}

func waitForTerminal(t *testing.T, store *jobstoretest.Fake, jobID string, want jobstore.Status) {
	t.Helper()
	deadline := time.Now().Add(2500 * time.Millisecond)
	for time.Now().Before(deadline) {
		job, err := store.FindByID(context.Background(), jobID)
		if err == nil && job.Status == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s to reach %s", jobID, want)
}
