package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creditflow/workflowdoctor/pkg/latency"
)

// NewLatencySource returns a breaker-guarded Redis source when redisURL is set, or no latency data.
func NewLatencySource(ctx context.Context, logger *slog.Logger, redisURL string) (latency.Source, func() error, error) {
	if redisURL == "" {
		return latency.None{}, func() error { return nil }, nil
	}

	source, err := latency.NewRedisFromURL(ctx, redisURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create latency source: %w", err)
	}

	return latency.NewBreaker(source, latency.DefaultBreakerSettings(), logger), source.Close, nil
}
