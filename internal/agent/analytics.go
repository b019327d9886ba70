package agent

import (
	"context"

	"github.com/Veraticus/aromance/internal/service"
)

// Analytics event types.
const (
	EventRecsLoaded      = "recs_loaded"
	EventCheckoutSuccess = "checkout_success"
)

// AnalyticsClient posts usage events to the analytics agent.
type AnalyticsClient struct {
	c *caller
}

var _ service.AnalyticsSink = (*AnalyticsClient)(nil)

// Track sends one event. Properties are flattened into the request body
// next to user_id and event_type.
func (a *AnalyticsClient) Track(ctx context.Context, event service.AnalyticsEvent) error {
	body := make(map[string]any, len(event.Properties)+2)
	for k, v := range event.Properties {
		body[k] = v
	}
	body["user_id"] = event.UserID
	body["event_type"] = event.Type
	return a.c.post(ctx, "/analytics", body, nil)
}
