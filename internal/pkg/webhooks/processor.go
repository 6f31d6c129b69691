package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultLockTTL    = 2 * time.Minute
	logicalLockPrefix = "logical:"
)

// Processor applies a pending event through the domain handler at most once
// per logical id and records the outcome on the event row.
type Processor struct {
	repo           Repository
	handler        DomainHandler
	locker         Locker
	deadLetter     DeadLetterSink
	recorder       OutcomeRecorder
	maxRetries     int
	handlerTimeout time.Duration
	lockTTL        time.Duration
	now            func() time.Time
}

type ProcessorOption func(*Processor)

func WithLocker(l Locker) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.locker = l
		}
	}
}

// WithDeadLetter sets the sink for events whose failure reached the ceiling.
func WithDeadLetter(sink DeadLetterSink) ProcessorOption {
	return func(p *Processor) { p.deadLetter = sink }
}

func WithProcessorRecorder(rec OutcomeRecorder) ProcessorOption {
	return func(p *Processor) {
		if rec != nil {
			p.recorder = rec
		}
	}
}

func WithMaxRetries(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.handlerTimeout = d }
}

func WithLockTTL(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.lockTTL = d
		}
	}
}

func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(repo Repository, handler DomainHandler, opts ...ProcessorOption) *Processor {
	p := &Processor{
		repo:       repo,
		handler:    handler,
		locker:     NewLocalLocker(),
		recorder:   noopRecorder{},
		maxRetries: DefaultMaxRetries,
		lockTTL:    defaultLockTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries is the ceiling used for dead-letter hand-off.
func (p *Processor) MaxRetries() int {
	return p.maxRetries
}

// Process runs one pending event. A ledger hit marks the row processed without
// calling the handler. A handler error is recorded on the row and returned as
// *ProcessingError. The event is updated in place with the stored state.
func (p *Processor) Process(ctx context.Context, event *models.WebhookEvent) error {
	if p == nil || p.repo == nil || p.handler == nil {
		return errors.New("webhooks: processor is not configured")
	}
	if event == nil {
		return ErrEventNotFound
	}
	if event.Status != models.WebhookStatusPending {
		return fmt.Errorf("event %s is %s: %w", event.ID, event.Status, ErrStatusConflict)
	}

	release, err := p.locker.Acquire(ctx, event.ID, p.lockTTL)
	if err != nil {
		return err
	}
	defer release()

	logical := ExtractLogicalID(event.EventType, event.Payload, event.ReceivedAt)

	if logical.Stable {
		// Another row with the same logical id may be in flight. Leave this one
		// pending so the sweeper or stale recovery picks it up later.
		releaseLogical, err := p.locker.Acquire(ctx, logicalLockPrefix+logical.Value, p.lockTTL)
		if err != nil {
			return err
		}
		defer releaseLogical()

		seen, err := p.repo.HasProcessed(ctx, logical.Value)
		if err != nil {
			return err
		}
		if seen {
			now := p.now()
			if err := p.repo.MarkProcessed(ctx, event.ID, nil, now); err != nil {
				return err
			}
			p.applyProcessed(event, now)
			p.recorder.Record(OutcomeDuplicate)
			log.Infof("[Webhooks] Event %s is a duplicate of %s, skipped", event.ID, logical.Value)
			return nil
		}
	}

	if handlerErr := p.invoke(ctx, event); handlerErr != nil {
		return p.fail(ctx, event, logical, handlerErr)
	}

	now := p.now()
	var entry *models.ProcessedEvent
	if logical.Stable {
		entry = &models.ProcessedEvent{
			EventID:              logical.Value,
			EventType:            event.EventType,
			SourceWebhookEventID: event.ID,
			ProcessedAt:          now,
		}
	}
	if err := p.repo.MarkProcessed(ctx, event.ID, entry, now); err != nil {
		// The handler already ran. A stale pending row will be retried and
		// absorbed by the ledger if it got written by someone else.
		log.Errorf("[Webhooks] Event %s applied but not recorded: %v", event.ID, err)
		return err
	}

	p.applyProcessed(event, now)
	p.recorder.Record(OutcomeProcessed)
	log.Infof("[Webhooks] Processed event %s (%s) as %s", event.ID, event.EventType, logical.Value)
	return nil
}

func (p *Processor) invoke(ctx context.Context, event *models.WebhookEvent) (err error) {
	if p.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.handlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("domain handler panicked: %v", r)
		}
	}()
	return p.handler.Handle(ctx, event.EventType, []byte(event.Payload))
}

func (p *Processor) fail(ctx context.Context, event *models.WebhookEvent, logical LogicalID, cause error) error {
	updated, err := p.repo.MarkFailed(ctx, event.ID, cause.Error(), p.now())
	if err != nil {
		log.Errorf("[Webhooks] Could not record failure of event %s (%v): %v", event.ID, cause, err)
		return err
	}
	*event = *updated
	p.recorder.Record(OutcomeFailed)
	log.Warnf("[Webhooks] Event %s failed (attempt %d/%d): %v", event.ID, event.RetryCount, p.maxRetries, cause)

	if event.IsDeadLettered(p.maxRetries) {
		p.recorder.Record(OutcomeDeadLettered)
		log.Errorf("[Webhooks] Event %s exhausted %d retries and needs manual review", event.ID, p.maxRetries)
		if p.deadLetter != nil {
			if err := p.deadLetter.Archive(ctx, event); err != nil {
				log.Errorf("[Webhooks] Dead-letter archive of %s failed: %v", event.ID, err)
			}
		}
	}

	return &ProcessingError{EventID: event.ID, LogicalID: logical.Value, Err: cause}
}

func (p *Processor) applyProcessed(event *models.WebhookEvent, at time.Time) {
	event.Status = models.WebhookStatusProcessed
	event.ProcessedAt = &at
	event.ErrorMessage = nil
}
