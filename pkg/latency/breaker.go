package latency

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker guarding a latency source.
type BreakerSettings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests and FailureRatio decide when the breaker trips.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings returns the settings used by the binaries.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "latency-source",
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// Breaker wraps a Source with a circuit breaker. While the breaker is open the wrapped source is not
// called and ErrOpenState is returned, so callers fall back to no latency data quickly.
type Breaker struct {
	source  Source
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps source.
func NewBreaker(source Source, settings BreakerSettings, logger *slog.Logger) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Latency source circuit breaker changed state",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Breaker{source: source, breaker: cb}
}

// Latencies calls the wrapped source through the breaker.
func (b *Breaker) Latencies(ctx context.Context, workflowID string) (map[string]time.Duration, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.source.Latencies(ctx, workflowID)
	})
	if err != nil {
		return nil, err
	}

	latencies, _ := result.(map[string]time.Duration)

	return latencies, nil
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}
