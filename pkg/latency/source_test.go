package latency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	source := Static{"wf-1": {"welcome": 40 * time.Second}}

	latencies, err := source.Latencies(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, latencies["welcome"])

	latencies["welcome"] = 0
	again, _ := source.Latencies(t.Context(), "wf-1")
	assert.Equal(t, 40*time.Second, again["welcome"], "callers get a copy")

	latencies, err = source.Latencies(t.Context(), "wf-2")
	require.NoError(t, err)
	assert.Empty(t, latencies)

	latencies, err = None{}.Latencies(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Nil(t, latencies)
}

type flakySource struct {
	calls int
	err   error
}

func (f *flakySource) Latencies(context.Context, string) (map[string]time.Duration, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return map[string]time.Duration{"a": time.Second}, nil
}

func TestBreaker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := &flakySource{}
	settings := DefaultBreakerSettings()
	settings.Timeout = time.Hour
	breaker := NewBreaker(source, settings, logger)

	latencies, err := breaker.Latencies(t.Context(), "wf")
	require.NoError(t, err)
	assert.Equal(t, time.Second, latencies["a"])

	source.err = errors.New("redis down")

	for range 3 {
		_, err = breaker.Latencies(t.Context(), "wf")
		assert.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	calls := source.calls
	_, err = breaker.Latencies(t.Context(), "wf")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, calls, source.calls, "open breaker short-circuits")
}
