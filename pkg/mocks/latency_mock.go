package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockLatencySource is a mock implementation of latency.Source interface.
type MockLatencySource struct {
	mock.Mock
}

func (m *MockLatencySource) Latencies(ctx context.Context, workflowID string) (map[string]time.Duration, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]time.Duration), args.Error(1)
}
