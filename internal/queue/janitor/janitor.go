// Package janitor runs a cron-scheduled trim of the work queue's
// completed/failed history down to its configured retention policy.
package janitor

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

const (
	keyCompleted = "privacyanalyzer:queue:completed"
	keyFailed    = "privacyanalyzer:queue:failed"

	completedRetentionAge   = 2 * time.Hour
	completedRetentionCount = 500
	failedRetentionAge      = 24 * time.Hour

	// Schedule runs the sweep every minute; cheap ZSET range ops against a
	// bounded history, no reason to run less often.
	Schedule = "@every 1m"
)

// Counters is the subset of the Health/Metrics counters (component J) the
// janitor reports removals through.
type Counters interface {
	AddRetentionTrimmed(kind string, n int)
}

// Janitor periodically trims Redis history keys.
type Janitor struct {
	client  *redis.Client
	metrics Counters
	logger  arbor.ILogger
	cron    *cron.Cron
}

// New constructs a Janitor. metrics may be nil if removal counts are not
// being tracked (e.g. in tests).
func New(client *redis.Client, metrics Counters, logger arbor.ILogger) *Janitor {
	return &Janitor{client: client, metrics: metrics, logger: logger, cron: cron.New()}
}

// Start schedules the sweep and begins running it in the background.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(Schedule, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	completedTrimmed, err := j.trimCompleted(ctx)
	if err != nil && j.logger != nil {
		j.logger.Error().Err(err).Msg("retention janitor: trim completed failed")
	}
	failedTrimmed, err := j.trimFailed(ctx)
	if err != nil && j.logger != nil {
		j.logger.Error().Err(err).Msg("retention janitor: trim failed failed")
	}

	if j.metrics != nil {
		j.metrics.AddRetentionTrimmed("completed", completedTrimmed)
		j.metrics.AddRetentionTrimmed("failed", failedTrimmed)
	}
}

// trimCompleted enforces "age 2h or last 500", whichever is more
// restrictive: entries older than the age cutoff are removed outright,
// then anything beyond the count cap (oldest first) is removed too.
func (j *Janitor) trimCompleted(ctx context.Context) (int, error) {
	cutoff := float64(time.Now().Add(-completedRetentionAge).UnixMilli())
	removedByAge, err := j.client.ZRemRangeByScore(ctx, keyCompleted, "-inf", formatScore(cutoff)).Result()
	if err != nil {
		return 0, err
	}

	total, err := j.client.ZCard(ctx, keyCompleted).Result()
	if err != nil {
		return int(removedByAge), err
	}
	removedByCount := int64(0)
	if total > completedRetentionCount {
		excess := total - completedRetentionCount
		removedByCount, err = j.client.ZRemRangeByRank(ctx, keyCompleted, 0, excess-1).Result()
		if err != nil {
			return int(removedByAge), err
		}
	}
	return int(removedByAge + removedByCount), nil
}

func (j *Janitor) trimFailed(ctx context.Context) (int, error) {
	cutoff := float64(time.Now().Add(-failedRetentionAge).UnixMilli())
	removed, err := j.client.ZRemRangeByScore(ctx, keyFailed, "-inf", formatScore(cutoff)).Result()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
