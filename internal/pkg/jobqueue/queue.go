package jobqueue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
)

const (
	// Redis keys
	JobQueueKey      = "webhooks:queue"
	JobProcessingKey = "webhooks:processing"
	JobStatsKey      = "webhooks:queue_stats"

	DefaultWorkers = 3
	dequeueTimeout = time.Second
)

// Queue hands persisted webhook events to worker goroutines through Redis.
// The list only carries event ids; the database row stays the source of truth
// and failures are recorded there for the sweeper, so the queue never retries.
type Queue struct {
	client         *redis.Client
	loader         EventLoader
	processor      webhooks.EventProcessor
	workers        int
	handlerTimeout time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

// NewQueue creates a new webhook queue
func NewQueue(client *redis.Client, loader EventLoader, processor webhooks.EventProcessor, workers int, handlerTimeout time.Duration) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Queue{
		client:         client,
		loader:         loader,
		processor:      processor,
		workers:        workers,
		handlerTimeout: handlerTimeout,
		stopCh:         make(chan struct{}),
	}
}

// Start starts the queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.stopCh = make(chan struct{})
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	q.requeueOrphans(context.Background())

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the workers and waits for in-flight events.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// requeueOrphans moves ids left in the processing list by a crashed process
// back to the queue. Duplicates are harmless: workers skip rows that are no
// longer pending.
func (q *Queue) requeueOrphans(ctx context.Context) {
	moved := 0
	for {
		_, err := q.client.RPopLPush(ctx, JobProcessingKey, JobQueueKey).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Failed to requeue orphaned events: %v", err)
			}
			break
		}
		moved++
	}
	if moved > 0 {
		log.Warnf("[JobQueue] Requeued %d orphaned events from processing list", moved)
	}
}

// worker processes events from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
			if _, err := q.ProcessNext(ctx, dequeueTimeout); err != nil {
				log.Errorf("[JobQueue] Worker %d: Error dequeuing event: %v", id, err)
				time.Sleep(time.Second)
			}
		}
	}
}

// Dispatch implements webhooks.Dispatcher.
func (q *Queue) Dispatch(ctx context.Context, event *models.WebhookEvent) error {
	return q.EnqueueEvent(ctx, event.ID)
}

// EnqueueEvent pushes an event id onto the queue.
func (q *Queue) EnqueueEvent(ctx context.Context, eventID string) error {
	pipe := q.client.Pipeline()
	pipe.LPush(ctx, JobQueueKey, eventID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusQueued), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	log.Debugf("[JobQueue] Enqueued event %s", eventID)
	return nil
}

// ProcessNext waits up to timeout for one event id and processes it. It
// reports whether an event was taken; redis.Nil is not an error.
func (q *Queue) ProcessNext(ctx context.Context, timeout time.Duration) (bool, error) {
	eventID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	q.processEvent(ctx, eventID)
	return true, nil
}

func (q *Queue) processEvent(ctx context.Context, eventID string) {
	defer q.removeFromProcessing(ctx, eventID)

	event, err := q.loader.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, webhooks.ErrEventNotFound) {
			log.Warnf("[JobQueue] Event %s no longer exists, dropping", eventID)
			q.updateJobStats(ctx, JobStatusSkipped)
			return
		}
		// The row stays pending and is picked up by stale recovery.
		log.Errorf("[JobQueue] Failed to load event %s: %v", eventID, err)
		q.updateJobStats(ctx, JobStatusFailed)
		return
	}
	if event.Status != models.WebhookStatusPending {
		log.Debugf("[JobQueue] Event %s already %s, skipping", eventID, event.Status)
		q.updateJobStats(ctx, JobStatusSkipped)
		return
	}

	pctx := ctx
	if q.handlerTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, q.handlerTimeout)
		defer cancel()
	}

	err = q.processor.Process(pctx, event)
	switch {
	case err == nil:
		q.updateJobStats(ctx, JobStatusCompleted)
	case errors.Is(err, webhooks.ErrLocked), errors.Is(err, webhooks.ErrStatusConflict):
		log.Debugf("[JobQueue] Event %s is handled elsewhere: %v", eventID, err)
		q.updateJobStats(ctx, JobStatusSkipped)
	default:
		log.Warnf("[JobQueue] Event %s failed, left to the retry sweeper: %v", eventID, err)
		q.updateJobStats(ctx, JobStatusFailed)
	}
}

// removeFromProcessing removes an event id from the processing list
func (q *Queue) removeFromProcessing(ctx context.Context, eventID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, eventID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove event %s from processing list: %v", eventID, err)
	}
}

func (q *Queue) updateJobStats(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// Stats returns queue lengths and lifetime totals per job status.
func (q *Queue) Stats(ctx context.Context) (QueueStats, error) {
	var stats QueueStats

	pipe := q.client.Pipeline()
	queued := pipe.LLen(ctx, JobQueueKey)
	processing := pipe.LLen(ctx, JobProcessingKey)
	totals := pipe.HGetAll(ctx, JobStatsKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return stats, err
	}

	stats.Queued = queued.Val()
	stats.Processing = processing.Val()
	stats.Totals = make(map[JobStatus]int64)
	for status, count := range totals.Val() {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			stats.Totals[JobStatus(status)] = n
		}
	}
	return stats, nil
}
