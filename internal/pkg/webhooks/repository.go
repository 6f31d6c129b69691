package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the event store plus idempotency ledger. Every status write is
// a guarded transition so concurrent workers cannot overwrite each other.
type Repository interface {
	CreateEvent(ctx context.Context, event *models.WebhookEvent) error
	GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
	HasProcessed(ctx context.Context, logicalID string) (bool, error)
	// MarkProcessed moves a pending event to processed. A non-nil entry is
	// inserted into the ledger in the same transaction.
	MarkProcessed(ctx context.Context, id string, entry *models.ProcessedEvent, at time.Time) error
	MarkFailed(ctx context.Context, id string, message string, at time.Time) (*models.WebhookEvent, error)
	// ResetForRetry moves a failed event below the ceiling back to pending.
	ResetForRetry(ctx context.Context, id string, maxRetries int, at time.Time) (bool, error)
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.WebhookEvent, error)
	CountByStatus(ctx context.Context) (map[models.WebhookStatus]int64, error)
	CountDeadLettered(ctx context.Context, maxRetries int) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEvent(ctx context.Context, event *models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

func (r *gormRepository) GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load webhook event %s: %w", id, err)
	}
	return &event, nil
}

func (r *gormRepository) HasProcessed(ctx context.Context, logicalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedEvent{}).
		Where("event_id = ?", logicalID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s: %w", logicalID, err)
	}
	return count > 0, nil
}

func (r *gormRepository) MarkProcessed(ctx context.Context, id string, entry *models.ProcessedEvent, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if entry != nil {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}},
				DoNothing: true,
			}).Create(entry)
			if res.Error != nil {
				return fmt.Errorf("insert ledger entry %s: %w", entry.EventID, res.Error)
			}
		}

		res := tx.Model(&models.WebhookEvent{}).
			Where("id = ? AND status = ?", id, models.WebhookStatusPending).
			Updates(map[string]interface{}{
				"status":        models.WebhookStatusProcessed,
				"processed_at":  at,
				"error_message": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("mark webhook event %s processed: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("mark webhook event %s processed: %w", id, ErrStatusConflict)
		}
		return nil
	})
}

func (r *gormRepository) MarkFailed(ctx context.Context, id string, message string, at time.Time) (*models.WebhookEvent, error) {
	var updated models.WebhookEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WebhookEvent{}).
			Where("id = ? AND status = ?", id, models.WebhookStatusPending).
			Updates(map[string]interface{}{
				"status":        models.WebhookStatusFailed,
				"error_message": message,
				"retry_count":   gorm.Expr("retry_count + ?", 1),
				"last_retry_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, fmt.Errorf("mark webhook event %s failed: %w", id, err)
	}
	return &updated, nil
}

func (r *gormRepository) ResetForRetry(ctx context.Context, id string, maxRetries int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ? AND retry_count < ?", id, models.WebhookStatusFailed, maxRetries).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusPending,
			"last_retry_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("reset webhook event %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) ListRetryable(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", models.WebhookStatusFailed, maxRetries).
		Order("last_retry_at ASC").
		Order("received_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list retryable webhook events: %w", err)
	}
	return events, nil
}

func (r *gormRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND received_at < ? AND (last_retry_at IS NULL OR last_retry_at < ?)",
			models.WebhookStatusPending, cutoff, cutoff).
		Order("received_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list stale pending webhook events: %w", err)
	}
	return events, nil
}

func (r *gormRepository) CountByStatus(ctx context.Context) (map[models.WebhookStatus]int64, error) {
	var rows []struct {
		Status models.WebhookStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count webhook events: %w", err)
	}

	counts := map[models.WebhookStatus]int64{
		models.WebhookStatusPending:   0,
		models.WebhookStatusProcessed: 0,
		models.WebhookStatusFailed:    0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *gormRepository) CountDeadLettered(ctx context.Context, maxRetries int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("status = ? AND retry_count >= ?", models.WebhookStatusFailed, maxRetries).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count dead-lettered webhook events: %w", err)
	}
	return count, nil
}
