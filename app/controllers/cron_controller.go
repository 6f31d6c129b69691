package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoinFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CoinFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
)

const sweepTimeout = 4 * time.Minute

type CronController struct {
	sweeper    *webhooks.Sweeper
	repo       webhooks.Repository
	counters   *counter.WebhookCounters
	queue      *jobqueue.Queue
	maxRetries int
}

// NewCronController wires the scheduler endpoints. queue may be nil.
func NewCronController(sweeper *webhooks.Sweeper, repo webhooks.Repository, counters *counter.WebhookCounters, queue *jobqueue.Queue, maxRetries int) *CronController {
	return &CronController{
		sweeper:    sweeper,
		repo:       repo,
		counters:   counters,
		queue:      queue,
		maxRetries: maxRetries,
	}
}

// HandleRetrySweep runs one retry batch. The only parameter is the optional
// max_retries ceiling.
func (cc *CronController) HandleRetrySweep(c *fiber.Ctx) error {
	maxRetries := c.QueryInt("max_retries", cc.maxRetries)

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	report, err := cc.sweeper.Sweep(ctx, maxRetries)
	if err != nil {
		log.Errorf("[Cron] Retry sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "report": report})
}

// HandleWebhookStats reports event counts by status, dead letters and the
// outcome counters.
func (cc *CronController) HandleWebhookStats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	byStatus, err := cc.repo.CountByStatus(ctx)
	if err != nil {
		log.Errorf("[Cron] Stats query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}
	deadLettered, err := cc.repo.CountDeadLettered(ctx, cc.maxRetries)
	if err != nil {
		log.Errorf("[Cron] Dead-letter count failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}

	resp := fiber.Map{
		"by_status":     byStatus,
		"dead_lettered": deadLettered,
		"max_retries":   cc.maxRetries,
	}
	if counters, err := cc.counters.Snapshot(ctx); err == nil {
		resp["counters"] = counters
	} else {
		log.Warnf("[Cron] Outcome counters unavailable: %v", err)
	}
	if cc.queue != nil {
		if stats, err := cc.queue.Stats(ctx); err == nil {
			resp["queue"] = stats
		} else {
			log.Warnf("[Cron] Queue stats unavailable: %v", err)
		}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
