package jobqueue

import (
	"context"

	"github.com/ManuelReschke/CoinFox/app/models"
)

// JobStatus is the outcome of one queued delivery, tracked in JobStatsKey.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSkipped   JobStatus = "skipped"
)

// EventLoader loads the durable event behind a queued id.
type EventLoader interface {
	GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
}

// QueueStats is a snapshot of the Redis side of the pipeline.
type QueueStats struct {
	Queued     int64               `json:"queued"`
	Processing int64               `json:"processing"`
	Totals     map[JobStatus]int64 `json:"totals"`
}
