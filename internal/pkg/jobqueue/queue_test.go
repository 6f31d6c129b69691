package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, DefaultWorkers},
		{"Negative workers", -1, DefaultWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, nil, nil, tt.workers, time.Second)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestQueueProcessesEnqueuedEvent(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	repo := webhooks.NewRepository(db)

	var calls int32
	processor := webhooks.NewProcessor(repo, webhooks.HandlerFunc(func(context.Context, string, []byte) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	queue := NewQueue(client, repo, processor, 1, time.Second)
	ctx := context.Background()

	event := seedPendingEvent(t, db, `{"data":{"subscription_id":"q1"}}`, time.Now())
	require.NoError(t, queue.Dispatch(ctx, event))

	took, err := queue.ProcessNext(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, took)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, models.WebhookStatusProcessed, eventStatus(t, db, event.ID))

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Queued)
	assert.Zero(t, stats.Processing)
	assert.Equal(t, int64(1), stats.Totals[JobStatusQueued])
	assert.Equal(t, int64(1), stats.Totals[JobStatusCompleted])
}

func TestQueueLeavesFailuresToSweeper(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	repo := webhooks.NewRepository(db)
	processor := webhooks.NewProcessor(repo, webhooks.HandlerFunc(func(context.Context, string, []byte) error {
		return errors.New("provider API down")
	}))
	queue := NewQueue(client, repo, processor, 1, time.Second)
	ctx := context.Background()

	event := seedPendingEvent(t, db, `{"data":{"subscription_id":"q2"}}`, time.Now())
	require.NoError(t, queue.EnqueueEvent(ctx, event.ID))

	_, err := queue.ProcessNext(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusFailed, eventStatus(t, db, event.ID))

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Queued, "queue must not re-enqueue failed events")
	assert.Equal(t, int64(1), stats.Totals[JobStatusFailed])
}

func TestQueueSkipsNonPendingAndMissingEvents(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	repo := webhooks.NewRepository(db)

	var calls int32
	processor := webhooks.NewProcessor(repo, webhooks.HandlerFunc(func(context.Context, string, []byte) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	queue := NewQueue(client, repo, processor, 1, time.Second)
	ctx := context.Background()

	done := seedPendingEvent(t, db, `{"data":{"order_id":"q3"}}`, time.Now())
	require.NoError(t, db.Model(&models.WebhookEvent{}).Where("id = ?", done.ID).
		Update("status", models.WebhookStatusProcessed).Error)

	require.NoError(t, queue.EnqueueEvent(ctx, done.ID))
	require.NoError(t, queue.EnqueueEvent(ctx, "does-not-exist"))

	for i := 0; i < 2; i++ {
		took, err := queue.ProcessNext(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, took)
	}

	assert.Zero(t, atomic.LoadInt32(&calls))
	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Totals[JobStatusSkipped])
	assert.Zero(t, stats.Processing)
}

func TestQueueProcessNextOnEmptyQueue(t *testing.T) {
	_, client := newTestRedis(t)
	queue := NewQueue(client, nil, nil, 1, time.Second)

	took, err := queue.ProcessNext(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, took)
}

func TestQueueWorkersAndOrphanRecovery(t *testing.T) {
	db := newTestDB(t)
	mr, client := newTestRedis(t)
	repo := webhooks.NewRepository(db)
	processor := webhooks.NewProcessor(repo, webhooks.HandlerFunc(func(context.Context, string, []byte) error {
		return nil
	}))
	queue := NewQueue(client, repo, processor, 2, time.Second)

	// left behind by a crashed worker
	orphan := seedPendingEvent(t, db, `{"data":{"customer_id":"c1"}}`, time.Now())
	_, err := mr.Lpush(JobProcessingKey, orphan.ID)
	require.NoError(t, err)

	queue.Start()
	defer queue.Stop()

	fresh := seedPendingEvent(t, db, `{"data":{"customer_id":"c2"}}`, time.Now())
	require.NoError(t, queue.EnqueueEvent(context.Background(), fresh.ID))

	ok := WaitForCondition(func() bool {
		return eventStatus(t, db, orphan.ID) == models.WebhookStatusProcessed &&
			eventStatus(t, db, fresh.ID) == models.WebhookStatusProcessed
	}, 5*time.Second)
	assert.True(t, ok, "workers should process queued and orphaned events")
}
