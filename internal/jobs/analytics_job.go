package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/craftfolio/backend/internal/queue"
	"github.com/craftfolio/backend/internal/services/analytics"
)

// RegisterAnalyticsJobHandlers wires the analytics capture queue to the
// configured sink. Delivery errors are returned so the queue retries
// with backoff.
func RegisterAnalyticsJobHandlers(processor *queue.JobProcessor, sink analytics.Sink) {
	processor.RegisterHandler(queue.QueueAnalyticsCapture, func(ctx context.Context, job queue.Job) error {
		var payload analytics.CapturePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			// Malformed payloads never become valid; drop without retry
			log.Printf("Dropping malformed analytics capture job %s: %v", job.ID, err)
			return nil
		}

		if err := sink.Capture(ctx, payload.DistinctID, payload.Event, payload.Properties); err != nil {
			return fmt.Errorf("failed to deliver analytics event %s: %w", payload.Event, err)
		}
		return nil
	})
}
