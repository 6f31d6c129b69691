package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/gofiber/fiber/v2/log"
)

const defaultSweepBatchSize = 100

// SweepReport summarizes one sweep run.
type SweepReport struct {
	MaxRetries   int               `json:"max_retries"`
	Selected     int               `json:"selected"`
	Recovered    int               `json:"recovered"`
	Failed       int               `json:"failed"`
	DeadLettered int               `json:"dead_lettered"`
	Skipped      int               `json:"skipped"`
	Errors       map[string]string `json:"errors,omitempty"`
}

func (r *SweepReport) addError(eventID string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[eventID] = err.Error()
}

// Sweeper resubmits failed events below the retry ceiling and recovers
// events stuck in pending.
type Sweeper struct {
	repo      Repository
	processor EventProcessor
	recorder  OutcomeRecorder
	batchSize int
	now       func() time.Time
}

type SweeperOption func(*Sweeper)

func WithBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithSweeperRecorder(rec OutcomeRecorder) SweeperOption {
	return func(s *Sweeper) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(repo Repository, processor EventProcessor, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:      repo,
		processor: processor,
		recorder:  noopRecorder{},
		batchSize: defaultSweepBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one batch of retries. Each candidate is flipped back to pending
// before it is reprocessed, so a crash mid-retry leaves it visibly in flight.
// Per-event failures are counted in the report and never abort the batch; the
// returned error is only set when candidates could not be selected.
func (s *Sweeper) Sweep(ctx context.Context, maxRetries int) (SweepReport, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	report := SweepReport{MaxRetries: maxRetries}
	s.recorder.Record(OutcomeSweepRun)

	candidates, err := s.repo.ListRetryable(ctx, maxRetries, s.batchSize)
	if err != nil {
		log.Errorf("[Sweeper] Failed to select retry candidates: %v", err)
		return report, err
	}
	report.Selected = len(candidates)

	for i := range candidates {
		if ctx.Err() != nil {
			report.Skipped += len(candidates) - i
			break
		}
		event := &candidates[i]

		now := s.now()
		reset, err := s.repo.ResetForRetry(ctx, event.ID, maxRetries, now)
		if err != nil {
			report.Skipped++
			report.addError(event.ID, err)
			log.Warnf("[Sweeper] Could not reset event %s: %v", event.ID, err)
			continue
		}
		if !reset {
			report.Skipped++
			log.Debugf("[Sweeper] Event %s changed before retry, skipped", event.ID)
			continue
		}
		event.Status = models.WebhookStatusPending
		event.LastRetryAt = &now

		if err := s.processor.Process(ctx, event); err != nil {
			report.addError(event.ID, err)
			var perr *ProcessingError
			if errors.As(err, &perr) {
				report.Failed++
				if event.IsDeadLettered(maxRetries) {
					report.DeadLettered++
				}
			} else {
				report.Skipped++
			}
			continue
		}
		report.Recovered++
	}

	log.Infof("[Sweeper] Sweep done: selected=%d recovered=%d failed=%d dead_lettered=%d skipped=%d",
		report.Selected, report.Recovered, report.Failed, report.DeadLettered, report.Skipped)
	return report, nil
}

// RecoverStale reprocesses pending events untouched for longer than
// olderThan. This covers a crash between receipt and processing and a crash
// in the middle of a retry.
func (s *Sweeper) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.repo.ListStalePending(ctx, cutoff, s.batchSize)
	if err != nil {
		log.Errorf("[Sweeper] Failed to select stale pending events: %v", err)
		return 0, err
	}

	recovered := 0
	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		event := &stale[i]
		if err := s.processor.Process(ctx, event); err != nil {
			if !errors.Is(err, ErrLocked) {
				log.Warnf("[Sweeper] Stale event %s not recovered: %v", event.ID, err)
			}
			continue
		}
		recovered++
	}
	if len(stale) > 0 {
		log.Infof("[Sweeper] Recovered %d/%d stale pending events", recovered, len(stale))
	}
	return recovered, nil
}
