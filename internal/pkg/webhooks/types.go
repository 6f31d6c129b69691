package webhooks

import (
	"context"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
)

// DefaultMaxRetries is the retry ceiling used when none is configured.
const DefaultMaxRetries = 5

// DomainHandler applies a webhook event to business state. Any returned error
// marks the event failed; retries are owned by the sweeper.
type DomainHandler interface {
	Handle(ctx context.Context, eventType string, payload []byte) error
}

// HandlerFunc adapts a plain function to DomainHandler.
type HandlerFunc func(ctx context.Context, eventType string, payload []byte) error

func (f HandlerFunc) Handle(ctx context.Context, eventType string, payload []byte) error {
	return f(ctx, eventType, payload)
}

// Dispatcher hands a freshly persisted event to asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.WebhookEvent) error
}

// EventProcessor is the part of Processor used by dispatchers and the sweeper.
type EventProcessor interface {
	Process(ctx context.Context, event *models.WebhookEvent) error
}

// Locker guards a single event against concurrent processing.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// DeadLetterSink receives events that exhausted their retries.
type DeadLetterSink interface {
	Archive(ctx context.Context, event *models.WebhookEvent) error
}

// Outcome names a pipeline result counted by an OutcomeRecorder.
type Outcome string

const (
	OutcomeReceived      Outcome = "received"
	OutcomePersistFailed Outcome = "persist_failed"
	OutcomeProcessed     Outcome = "processed"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeFailed        Outcome = "failed"
	OutcomeDeadLettered  Outcome = "dead_lettered"
	OutcomeSweepRun      Outcome = "sweep_runs"
)

// OutcomeRecorder counts outcomes. Implementations must not block the caller
// for long and must swallow their own errors.
type OutcomeRecorder interface {
	Record(outcome Outcome)
}

type noopRecorder struct{}

func (noopRecorder) Record(Outcome) {}
