package latency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestRedis_Latencies(t *testing.T) {
	client := setupRedis(t)
	source := NewRedis(client, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, source.Record(t.Context(), "wf-1", "welcome", 45*time.Second))
	require.NoError(t, source.Record(t.Context(), "wf-1", "remind", 1500*time.Millisecond))
	require.NoError(t, client.HSet(t.Context(), DefaultKeyPrefix+"wf-1", "broken", "fast").Err())

	latencies, err := source.Latencies(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Duration{
		"welcome": 45 * time.Second,
		"remind":  1500 * time.Millisecond,
	}, latencies)

	latencies, err = source.Latencies(t.Context(), "wf-unknown")
	require.NoError(t, err)
	assert.Empty(t, latencies)
}
