package latency

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes the per-workflow hash holding step latencies in milliseconds.
const DefaultKeyPrefix = "workflowdoctor:latency:"

// Redis reads step latencies from a hash per workflow: field = step ID, value = milliseconds.
type Redis struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedis creates a Redis latency source over an existing client.
func NewRedis(client redis.UniversalClient, prefix string, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Redis{client: client, prefix: prefix, logger: logger}
}

// NewRedisFromURL connects to the Redis server at url and verifies the connection.
func NewRedisFromURL(ctx context.Context, url string, logger *slog.Logger) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewRedis(client, "", logger), nil
}

func (r *Redis) key(workflowID string) string {
	return r.prefix + workflowID
}

// Latencies reads the workflow's hash. Unparseable values are skipped.
func (r *Redis) Latencies(ctx context.Context, workflowID string) (map[string]time.Duration, error) {
	values, err := r.client.HGetAll(ctx, r.key(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read latencies of workflow %s: %w", workflowID, err)
	}

	latencies := make(map[string]time.Duration, len(values))

	for stepID, raw := range values {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			r.logger.WarnContext(ctx, "Skipping invalid latency value",
				"workflow_id", workflowID, "step_id", stepID, "value", raw)

			continue
		}

		latencies[stepID] = time.Duration(ms) * time.Millisecond
	}

	return latencies, nil
}

// Record stores the latency of one step.
func (r *Redis) Record(ctx context.Context, workflowID, stepID string, latency time.Duration) error {
	err := r.client.HSet(ctx, r.key(workflowID), stepID, latency.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to record latency of step %s: %w", stepID, err)
	}

	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
