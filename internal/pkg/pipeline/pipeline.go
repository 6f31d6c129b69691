package pipeline

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CoinFox/internal/pkg/billing"
	"github.com/ManuelReschke/CoinFox/internal/pkg/config"
	"github.com/ManuelReschke/CoinFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CoinFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CoinFox/internal/pkg/s3backup"
	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
)

// Pipeline is the wired webhook subsystem shared by the web process and the
// sweeper CLI.
type Pipeline struct {
	Repo      webhooks.Repository
	Counters  *counter.WebhookCounters
	Processor *webhooks.Processor
	Sweeper   *webhooks.Sweeper
	Receiver  *webhooks.Receiver
	// Queue is set in queue dispatch mode only.
	Queue   *jobqueue.Queue
	Manager *jobqueue.Manager
	inline  *webhooks.InlineDispatcher
}

// Option overrides parts of the default wiring, mostly for tests.
type Option func(*options)

type options struct {
	handler webhooks.DomainHandler
}

// WithHandler replaces the billing handler.
func WithHandler(h webhooks.DomainHandler) Option {
	return func(o *options) { o.handler = h }
}

// New wires the pipeline. client may be nil; the lock, the counters and queue
// dispatch are then unavailable.
func New(ctx context.Context, cfg config.Config, db *gorm.DB, client *redis.Client, opts ...Option) *Pipeline {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.handler == nil {
		o.handler = billing.NewWebhookHandler(billing.NewServiceFromDB(db), cfg.Billing.Provider)
	}

	p := &Pipeline{
		Repo:     webhooks.NewRepository(db),
		Counters: counter.NewWebhookCounters(client),
	}

	procOpts := []webhooks.ProcessorOption{
		webhooks.WithProcessorRecorder(p.Counters),
		webhooks.WithMaxRetries(cfg.Webhooks.MaxRetries),
		webhooks.WithHandlerTimeout(cfg.Webhooks.HandlerTimeout),
		webhooks.WithLockTTL(cfg.Webhooks.LockTTL),
	}
	if client != nil {
		procOpts = append(procOpts, webhooks.WithLocker(webhooks.NewRedisLocker(client)))
	}
	if sink := deadLetterSink(ctx, cfg.DeadLetter); sink != nil {
		procOpts = append(procOpts, webhooks.WithDeadLetter(sink))
	}
	p.Processor = webhooks.NewProcessor(p.Repo, o.handler, procOpts...)

	p.Sweeper = webhooks.NewSweeper(p.Repo, p.Processor,
		webhooks.WithBatchSize(cfg.Webhooks.SweepBatchSize),
		webhooks.WithSweeperRecorder(p.Counters),
	)

	recvOpts := []webhooks.ReceiverOption{webhooks.WithReceiverRecorder(p.Counters)}
	switch cfg.Webhooks.DispatchMode {
	case config.DispatchModeQueue:
		if client == nil {
			log.Warn("[Webhooks] Queue dispatch requested without cache, events wait for the sweeper")
			break
		}
		p.Queue = jobqueue.NewQueue(client, p.Repo, p.Processor, cfg.Webhooks.QueueWorkers, cfg.Webhooks.HandlerTimeout)
		recvOpts = append(recvOpts, webhooks.WithDispatcher(p.Queue))
	case config.DispatchModeInline:
		p.inline = webhooks.NewInlineDispatcher(p.Processor, cfg.Webhooks.HandlerTimeout)
		recvOpts = append(recvOpts, webhooks.WithDispatcher(p.inline))
	}
	p.Receiver = webhooks.NewReceiver(p.Repo, recvOpts...)

	p.Manager = jobqueue.NewManager(jobqueue.ManagerConfig{
		Queue:         p.Queue,
		Sweeper:       p.Sweeper,
		MaxRetries:    cfg.Webhooks.MaxRetries,
		SweepInterval: cfg.Webhooks.SweepInterval,
		StaleAfter:    cfg.Webhooks.StalePending,
	})
	return p
}

// Start runs the queue workers and the periodic sweep and recovery.
func (p *Pipeline) Start() {
	p.Manager.Start()
}

// Stop stops background work, then waits for inline processing and pending
// counter writes until timeout passes.
func (p *Pipeline) Stop(timeout time.Duration) {
	p.Manager.Stop()
	deadline := time.Now().Add(timeout)

	if p.inline != nil {
		done := make(chan struct{})
		go func() {
			p.inline.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			log.Warn("[Webhooks] Inline processing still running at shutdown, left for stale recovery")
		}
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	if err := p.Counters.Flush(ctx); err != nil {
		log.Warnf("[Webhooks] Counters not flushed at shutdown: %v", err)
	}
}

func deadLetterSink(ctx context.Context, cfg config.DeadLetterConfig) webhooks.DeadLetterSink {
	s3cfg := s3backup.FromAppConfig(cfg)
	if !s3cfg.IsEnabled() {
		return nil
	}
	client, err := s3backup.NewClient(ctx, s3cfg)
	if err != nil {
		log.Errorf("[DeadLetter] Archive disabled: %v", err)
		return nil
	}
	return client
}
