package mocks

import (
	"context"

	"github.com/creditflow/workflowdoctor/pkg/eventbus"
	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus stands in for the health event bus. Publish expectations usually match on the event type
// with mock.AnythingOfType or mock.MatchedBy.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
