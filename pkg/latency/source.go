// Package latency provides per-step observed latency for the performance audit.
package latency

import (
	"context"
	"maps"
	"time"
)

// Source returns the observed latency of each step of a workflow, keyed by step ID.
// A missing entry means no data for that step.
type Source interface {
	Latencies(ctx context.Context, workflowID string) (map[string]time.Duration, error)
}

// Static serves latencies from memory, keyed by workflow ID.
type Static map[string]map[string]time.Duration

// Latencies returns a copy of the configured latencies of the workflow.
func (s Static) Latencies(_ context.Context, workflowID string) (map[string]time.Duration, error) {
	return maps.Clone(s[workflowID]), nil
}

// None reports no latency data for any workflow.
type None struct{}

// Latencies always returns nil.
func (None) Latencies(context.Context, string) (map[string]time.Duration, error) {
	return nil, nil
}
