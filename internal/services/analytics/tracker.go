package analytics

import (
	"context"
	"log"

	"github.com/craftfolio/backend/internal/models"
	"github.com/craftfolio/backend/internal/queue"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is one referral state transition to record
type Event struct {
	ReferralID        *uuid.UUID
	CampaignID        *uuid.UUID
	UserID            *uuid.UUID
	Type              string
	Properties        map[string]interface{}
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// CapturePayload is the job payload forwarded to the analytics sink worker
type CapturePayload struct {
	DistinctID string                 `json:"distinct_id"`
	Event      string                 `json:"event"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Tracker appends audit-trail rows for referral state transitions and
// forwards selected events to the analytics sink through the job queue.
// Both sides are best-effort: failures are logged, never propagated, so
// they cannot fail the primary operation.
type Tracker struct {
	db       *gorm.DB
	enqueuer queue.Enqueuer
}

// NewTracker creates a new event tracker. The enqueuer may be nil, in
// which case analytics forwarding is disabled and only the audit trail
// is written.
func NewTracker(db *gorm.DB, enqueuer queue.Enqueuer) *Tracker {
	return &Tracker{
		db:       db,
		enqueuer: enqueuer,
	}
}

// Track records an audit-trail row and, when the event is attributed to a
// user, forwards it to the analytics sink.
func (t *Tracker) Track(ctx context.Context, event Event) {
	row := models.ReferralEvent{
		ReferralID:        event.ReferralID,
		CampaignID:        event.CampaignID,
		UserID:            event.UserID,
		EventType:         event.Type,
		Properties:        models.JSON(event.Properties),
		IPAddress:         event.IPAddress,
		UserAgent:         event.UserAgent,
		DeviceFingerprint: event.DeviceFingerprint,
	}

	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("Failed to record referral event %s: %v", event.Type, err)
	}

	if event.UserID != nil {
		t.Capture(ctx, *event.UserID, event.Type, event.Properties)
	}
}

// Capture forwards a single analytics event attributed to a user. The
// dispatch is queued; delivery failures are retried by the worker and
// never surface here.
func (t *Tracker) Capture(ctx context.Context, userID uuid.UUID, eventName string, properties map[string]interface{}) {
	if t.enqueuer == nil {
		return
	}

	payload := CapturePayload{
		DistinctID: userID.String(),
		Event:      eventName,
		Properties: properties,
	}

	if _, err := t.enqueuer.Enqueue(queue.QueueAnalyticsCapture, payload); err != nil {
		log.Printf("Failed to enqueue analytics capture for event %s: %v", eventName, err)
	}
}
