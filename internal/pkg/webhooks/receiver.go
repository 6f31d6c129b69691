package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

type ReceiveOutcome string

const (
	ReceiveOutcomePersisted     ReceiveOutcome = "persisted"
	ReceiveOutcomePersistFailed ReceiveOutcome = "persist_failed"
)

// ReceiveResult tells the caller whether the delivery became durable. It is
// for logging only; the sender is acknowledged either way.
type ReceiveResult struct {
	Outcome ReceiveOutcome
	Event   *models.WebhookEvent
	Err     error
}

func (r ReceiveResult) Persisted() bool {
	return r.Outcome == ReceiveOutcomePersisted
}

// Receiver stores every inbound delivery as a new pending event before any
// processing happens.
type Receiver struct {
	repo       Repository
	dispatcher Dispatcher
	recorder   OutcomeRecorder
	now        func() time.Time
}

type ReceiverOption func(*Receiver)

// WithDispatcher sets where persisted events are handed for processing.
func WithDispatcher(d Dispatcher) ReceiverOption {
	return func(r *Receiver) { r.dispatcher = d }
}

func WithReceiverRecorder(rec OutcomeRecorder) ReceiverOption {
	return func(r *Receiver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

func WithReceiverClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) { r.now = now }
}

func NewReceiver(repo Repository, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		repo:     repo,
		recorder: noopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Receive persists the payload with status pending and retry_count 0. It never
// panics and never returns an error; failures are reported in the result.
func (r *Receiver) Receive(ctx context.Context, eventType string, body []byte) ReceiveResult {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		eventType = unknownEventType
	}

	if !json.Valid(body) {
		err := fmt.Errorf("%w: body is not valid JSON (%d bytes)", ErrInvalidPayload, len(body))
		log.Errorf("[Webhooks] Dropping %s delivery: %v", eventType, err)
		r.recorder.Record(OutcomePersistFailed)
		return ReceiveResult{Outcome: ReceiveOutcomePersistFailed, Err: err}
	}

	event := &models.WebhookEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		Payload:    models.WebhookPayload(append([]byte(nil), body...)),
		Status:     models.WebhookStatusPending,
		ReceivedAt: r.now(),
		RetryCount: 0,
	}
	if err := r.repo.CreateEvent(ctx, event); err != nil {
		log.Errorf("[Webhooks] Failed to persist %s delivery, acknowledging anyway: %v", eventType, err)
		r.recorder.Record(OutcomePersistFailed)
		return ReceiveResult{Outcome: ReceiveOutcomePersistFailed, Err: err}
	}

	r.recorder.Record(OutcomeReceived)
	log.Infof("[Webhooks] Stored event %s (%s)", event.ID, eventType)

	if r.dispatcher != nil {
		if err := r.dispatcher.Dispatch(ctx, event); err != nil {
			log.Warnf("[Webhooks] Dispatch of event %s failed, left pending for recovery: %v", event.ID, err)
		}
	}
	return ReceiveResult{Outcome: ReceiveOutcomePersisted, Event: event}
}
