package queue

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// Queue names
	QueueAnalyticsCapture = "analytics_capture"
	QueueRewardExpiry     = "reward_expiry"

	// Default values
	DefaultRetryCount = 3
	DefaultTTL        = 24 * time.Hour
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	RunAt      time.Time       `json:"run_at"`
}

// JobHandler is a function that processes a job's payload
type JobHandler func(ctx context.Context, job Job) error

// Enqueuer is the narrow producer-side interface exposed to services that
// dispatch fire-and-forget work.
type Enqueuer interface {
	Enqueue(queueName string, payload interface{}, opts ...EnqueueOption) (string, error)
}
