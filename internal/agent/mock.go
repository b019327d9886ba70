package agent

import (
	"context"
	"sync"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// MockConsultation is a scriptable consultation agent. Without SendFn it
// replays Replies in order and repeats the last one.
type MockConsultation struct {
	StartFn func(ctx context.Context, userID, sessionID string) (service.ConsultationReply, error)
	SendFn  func(ctx context.Context, userID, sessionID, message string) (service.ConsultationReply, error)

	Replies []service.ConsultationReply

	// Call tracking
	StartCalls []string
	Messages   []string

	mu   sync.Mutex
	next int
}

// Start implements service.ConsultationAgent.
func (m *MockConsultation) Start(ctx context.Context, userID, sessionID string) (service.ConsultationReply, error) {
	m.mu.Lock()
	m.StartCalls = append(m.StartCalls, sessionID)
	fn := m.StartFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID, sessionID)
	}
	return service.ConsultationReply{Response: "Welcome! Tell me about your day.", NextStep: "personality_assessment"}, nil
}

// Send implements service.ConsultationAgent.
func (m *MockConsultation) Send(ctx context.Context, userID, sessionID, message string) (service.ConsultationReply, error) {
	m.mu.Lock()
	m.Messages = append(m.Messages, message)
	fn := m.SendFn
	var reply service.ConsultationReply
	if len(m.Replies) > 0 {
		reply = m.Replies[min(m.next, len(m.Replies)-1)]
		m.next++
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID, sessionID, message)
	}
	return reply, nil
}

// CompletedReply returns a final consultation turn carrying fp.
func CompletedReply(fp model.FragranceProfile) service.ConsultationReply {
	return service.ConsultationReply{
		Response: "Your fragrance profile is ready.",
		NextStep: "complete",
		Progress: 1.0,
		Profile:  &fp,
	}
}

// MockRecommender is a scriptable recommendation agent.
type MockRecommender struct {
	RecommendFn func(ctx context.Context, userID string, fp *model.FragranceProfile) error

	Calls []string
	mu    sync.Mutex
}

// Recommend implements service.RecommendationAgent.
func (m *MockRecommender) Recommend(ctx context.Context, userID string, fp *model.FragranceProfile) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, userID)
	fn := m.RecommendFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID, fp)
	}
	return nil
}

// MockInventory reports every product available unless CheckFn or
// Unavailable says otherwise.
type MockInventory struct {
	CheckFn func(ctx context.Context, userID string, productIDs []string) (map[string]service.Availability, error)

	// Unavailable lists product ids reported out of stock.
	Unavailable map[string]bool

	Calls [][]string
	mu    sync.Mutex
}

// CheckAvailability implements service.InventoryChecker.
func (m *MockInventory) CheckAvailability(ctx context.Context, userID string, productIDs []string) (map[string]service.Availability, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string(nil), productIDs...))
	fn := m.CheckFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID, productIDs)
	}
	out := make(map[string]service.Availability, len(productIDs))
	for _, id := range productIDs {
		if m.Unavailable[id] {
			out[id] = service.Availability{StockLevel: "out_of_stock"}
			continue
		}
		out[id] = service.Availability{Available: true, Quantity: 100, StockLevel: "high"}
	}
	return out, nil
}

// MockAnalytics records tracked events.
type MockAnalytics struct {
	TrackFn func(ctx context.Context, event service.AnalyticsEvent) error

	events []service.AnalyticsEvent
	mu     sync.Mutex
}

// Track implements service.AnalyticsSink.
func (m *MockAnalytics) Track(ctx context.Context, event service.AnalyticsEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	fn := m.TrackFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, event)
	}
	return nil
}

// Events returns a copy of every tracked event.
func (m *MockAnalytics) Events() []service.AnalyticsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.AnalyticsEvent(nil), m.events...)
}

// EventTypes returns the type of every tracked event in order.
func (m *MockAnalytics) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

var (
	_ service.ConsultationAgent   = (*MockConsultation)(nil)
	_ service.RecommendationAgent = (*MockRecommender)(nil)
	_ service.InventoryChecker    = (*MockInventory)(nil)
	_ service.AnalyticsSink       = (*MockAnalytics)(nil)
)
