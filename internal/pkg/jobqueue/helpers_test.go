package jobqueue

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/ManuelReschke/CoinFox/internal/pkg/database"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:jobqueue_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func seedPendingEvent(t *testing.T, db *gorm.DB, payload string, receivedAt time.Time) *models.WebhookEvent {
	t.Helper()

	event := &models.WebhookEvent{
		ID:         uuid.NewString(),
		EventType:  "subscription_created",
		Payload:    models.WebhookPayload(payload),
		Status:     models.WebhookStatusPending,
		ReceivedAt: receivedAt.UTC(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func eventStatus(t *testing.T, db *gorm.DB, id string) models.WebhookStatus {
	t.Helper()

	var event models.WebhookEvent
	require.NoError(t, db.Where("id = ?", id).First(&event).Error)
	return event.Status
}

// WaitForCondition polls condition until it holds or timeout passes.
func WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
