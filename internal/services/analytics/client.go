package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/craftfolio/backend/internal/config"
)

// Sink is the outbound analytics boundary. Implementations must treat
// Capture as fire-and-forget from the engine's perspective.
type Sink interface {
	Capture(ctx context.Context, distinctID, event string, properties map[string]interface{}) error
}

// CaptureClient sends events to a PostHog-compatible capture endpoint
type CaptureClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewCaptureClient creates a new analytics capture client
func NewCaptureClient(cfg config.AnalyticsConfig) *CaptureClient {
	return &CaptureClient{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// captureRequest is the wire payload for the capture endpoint
type captureRequest struct {
	APIKey     string                 `json:"api_key"`
	Event      string                 `json:"event"`
	DistinctID string                 `json:"distinct_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Capture sends one event to the analytics sink
func (c *CaptureClient) Capture(ctx context.Context, distinctID, event string, properties map[string]interface{}) error {
	body, err := json.Marshal(captureRequest{
		APIKey:     c.apiKey,
		Event:      event,
		DistinctID: distinctID,
		Properties: properties,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/capture/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send capture request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("capture request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
