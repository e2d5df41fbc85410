package janitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	trimmed map[string]int
}

func (f *fakeCounters) AddRetentionTrimmed(kind string, n int) {
	if f.trimmed == nil {
		f.trimmed = make(map[string]int)
	}
	f.trimmed[kind] += n
}

func seed(t *testing.T, client *redis.Client, key string, count int, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	at := time.Now().Add(-age).UnixMilli()
	for i := 0; i < count; i++ {
		member := fmt.Sprintf("%s-%d-%d", key, age, i)
		require.NoError(t, client.ZAdd(ctx, key, redis.Z{Score: float64(at), Member: member}).Err())
	}
}

func TestJanitor_TrimsCompletedByAgeAndCount(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	seed(t, client, keyCompleted, 3, 3*time.Hour) // older than the 2h age cutoff
	seed(t, client, keyCompleted, 600, time.Minute) // within age, exceeds the 500 count cap

	counters := &fakeCounters{}
	j := New(client, counters, nil)
	j.sweep()

	total, err := client.ZCard(context.Background(), keyCompleted).Result()
	require.NoError(t, err)
	assert.EqualValues(t, completedRetentionCount, total)
	assert.Equal(t, 3+(603-3-completedRetentionCount), counters.trimmed["completed"])
}

func TestJanitor_TrimsFailedByAge(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	seed(t, client, keyFailed, 2, 25*time.Hour) // older than the 24h cutoff
	seed(t, client, keyFailed, 5, time.Hour)    // within the window

	counters := &fakeCounters{}
	j := New(client, counters, nil)
	j.sweep()

	total, err := client.ZCard(context.Background(), keyFailed).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, 2, counters.trimmed["failed"])
}
