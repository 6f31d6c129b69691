package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/ManuelReschke/CoinFox/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, eventType, payload string, receivedAt time.Time) *models.WebhookEvent {
	t.Helper()

	event := &models.WebhookEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		Payload:    models.WebhookPayload(payload),
		Status:     models.WebhookStatusPending,
		ReceivedAt: receivedAt.UTC(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func loadEvent(t *testing.T, db *gorm.DB, id string) models.WebhookEvent {
	t.Helper()

	var event models.WebhookEvent
	require.NoError(t, db.Where("id = ?", id).First(&event).Error)
	return event
}

func countLedger(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&models.ProcessedEvent{}).Count(&n).Error)
	return n
}

// scriptedHandler returns errs[i] on the i-th call and nil afterwards.
type scriptedHandler struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (h *scriptedHandler) Handle(_ context.Context, _ string, _ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= len(h.errs) {
		return h.errs[h.calls-1]
	}
	return nil
}

func (h *scriptedHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func alwaysFailing(msg string) HandlerFunc {
	return func(context.Context, string, []byte) error {
		return errors.New(msg)
	}
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[Outcome]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[Outcome]int)}
}

func (r *countingRecorder) Record(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[outcome]++
}

func (r *countingRecorder) Count(outcome Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[outcome]
}
