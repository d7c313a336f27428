package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sirclappington/enq/internal/lock"
	"github.com/sirclappington/enq/internal/store/memstore"
)

func TestRunMaintenancePassAggregatesAllThreeSweeps(t *testing.T) {
	st := memstore.New()
	clk := newTestClock(time.Now())
	cfg := Config{
		WorkItemTimeout:         time.Millisecond,
		RetryDelay:              ptr(time.Duration(0)),
		Retries:                 ptr(5),
		DeadLetterMaxItems:      1,
		DisableMaintenanceTasks: true,
	}
	q, err := New[samplePayload](st, cfg, WithClock[samplePayload](clk.Now))
	require.NoError(t, err)
	ctx := context.Background()

	// One item overdue in-flight.
	_, err = q.Enqueue(ctx, samplePayload{V: 1})
	require.NoError(t, err)
	entry, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, entry)
	clk.Advance(time.Second)

	// One item due in delayed.
	idDelayed, err := q.Enqueue(ctx, samplePayload{V: 2})
	require.NoError(t, err)
	require.NoError(t, st.HeadPush(ctx, q.keys.Delayed, idDelayed))
	require.NoError(t, st.ListRemove(ctx, q.keys.Ready, idDelayed))
	require.NoError(t, st.Set(ctx, q.keys.Wait(idDelayed), timestampBytes(clk.Now().Add(-time.Second)), time.Hour))

	// Two items over the dead-letter cap.
	require.NoError(t, st.HeadPush(ctx, q.keys.Dead, "dead-1"))
	require.NoError(t, st.HeadPush(ctx, q.keys.Dead, "dead-2"))

	require.NoError(t, q.runMaintenancePass(ctx))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.WorkItemTimeouts)

	n, err := st.ListLength(ctx, q.keys.Dead)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	readyIDs, err := st.ListRange(ctx, q.keys.Ready)
	require.NoError(t, err)
	require.Contains(t, readyIDs, idDelayed)
}

func TestMaintenanceThrottleSkipsConcurrentPass(t *testing.T) {
	clk := newTestClock(time.Now())
	provider := lock.NewMemProvider(clk.Now)

	var firstRan, secondRan bool
	err := provider.TryUsingLock(context.Background(), "q-maintenance", time.Minute, time.Second,
		func(context.Context) error {
			firstRan = true
			return nil
		})
	require.NoError(t, err)
	require.True(t, firstRan)

	err = provider.TryUsingLock(context.Background(), "q-maintenance", time.Minute, time.Second,
		func(context.Context) error {
			secondRan = true
			return nil
		})
	require.NoError(t, err)
	require.False(t, secondRan, "a second attempt before the throttle interval elapses must be skipped")

	clk.Advance(time.Minute + time.Second)
	err = provider.TryUsingLock(context.Background(), "q-maintenance", time.Minute, time.Second,
		func(context.Context) error {
			secondRan = true
			return nil
		})
	require.NoError(t, err)
	require.True(t, secondRan, "once the throttle interval elapses the lock must be obtainable again")
}
