package counter

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	webhookCountersKey = "webhooks:counters"
	pendingIncrements  = 1024
	incrementTimeout   = 500 * time.Millisecond
)

type increment struct {
	outcome webhooks.Outcome
	flushed chan struct{}
}

// WebhookCounters counts pipeline outcomes in a Redis hash shared by all
// instances. A nil client turns it into a no-op.
type WebhookCounters struct {
	client  *redis.Client
	pending chan increment
	start   sync.Once
}

func NewWebhookCounters(client *redis.Client) *WebhookCounters {
	return &WebhookCounters{client: client, pending: make(chan increment, pendingIncrements)}
}

// Record implements webhooks.OutcomeRecorder. It never waits on Redis: the
// increment is handed to a background writer and dropped if that one is too
// far behind. Errors are logged only.
func (c *WebhookCounters) Record(outcome webhooks.Outcome) {
	if c == nil || c.client == nil {
		return
	}
	c.start.Do(func() { go c.run() })

	select {
	case c.pending <- increment{outcome: outcome}:
	default:
		log.Warnf("[Webhooks] Counter backlog full, %s not recorded", outcome)
	}
}

// Flush waits until everything recorded before the call has been written.
func (c *WebhookCounters) Flush(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	c.start.Do(func() { go c.run() })

	flushed := make(chan struct{})
	select {
	case c.pending <- increment{flushed: flushed}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WebhookCounters) run() {
	for inc := range c.pending {
		if inc.flushed != nil {
			close(inc.flushed)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
		if err := c.client.HIncrBy(ctx, webhookCountersKey, string(inc.outcome), 1).Err(); err != nil {
			log.Debugf("[Webhooks] Counter %s not recorded: %v", inc.outcome, err)
		}
		cancel()
	}
}

// Snapshot returns all counters; missing ones are absent.
func (c *WebhookCounters) Snapshot(ctx context.Context) (map[string]int64, error) {
	result := make(map[string]int64)
	if c == nil || c.client == nil {
		return result, nil
	}

	data, err := c.client.HGetAll(ctx, webhookCountersKey).Result()
	if err != nil {
		return nil, err
	}
	for field, raw := range data {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			result[field] = n
		}
	}
	return result, nil
}
