package mqtt

import (
	"context"
	"sync"

	coremqtt "github.com/keilos1/harvestplan/core/mqtt"
)

// MockPublisher records messages in memory. It fails while Fail is set.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []coremqtt.PlanMessage
	Fail     error
}

// NewMockPublisher returns an empty MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

func (m *MockPublisher) PublishPlan(_ context.Context, msg coremqtt.PlanMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// Published returns a copy of the recorded messages.
func (m *MockPublisher) Published() []coremqtt.PlanMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.PlanMessage(nil), m.Messages...)
}
