package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retry int
		min   time.Duration
		max   time.Duration
	}{
		{0, 4 * time.Second, 6 * time.Second},
		{1, 8 * time.Second, 12 * time.Second},
		{2, 16 * time.Second, 24 * time.Second},
		{10, 2880 * time.Second, 4320 * time.Second}, // capped at an hour before jitter
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			backoff := calculateBackoff(tt.retry)
			assert.GreaterOrEqual(t, backoff, tt.min, "retry %d", tt.retry)
			assert.LessOrEqual(t, backoff, tt.max, "retry %d", tt.retry)
		}
	}
}

func TestEnqueueOptions(t *testing.T) {
	job := &Job{MaxRetries: DefaultRetryCount}

	WithMaxRetries(7)(job)
	assert.Equal(t, 7, job.MaxRetries)

	WithJobID("fixed-id")(job)
	assert.Equal(t, "fixed-id", job.ID)
}
