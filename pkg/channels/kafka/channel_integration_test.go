//go:build integration

package kafka_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/creditflow/workflowdoctor/pkg/channels/kafka"
	"github.com/creditflow/workflowdoctor/pkg/eventbus"
	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func startBroker(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("workflowdoctor"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	admin, err := sarama.NewClusterAdmin(brokers, config)
	require.NoError(t, err)

	defer admin.Close()

	require.NoError(t, admin.CreateTopic(events.Topic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false))

	return brokers[0]
}

func TestKafkaChannel_DeliversRepairEvents(t *testing.T) {
	broker := startBroker(t)
	logger := slog.New(slog.DiscardHandler)

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), []string{broker}, "workflowdoctor-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.RepairCompleted, 1)

	require.NoError(t, bus.Handle(events.RepairCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.RepairCompleted)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	result := models.NewRepairResult("wf-kafka")
	result.Fixed = append(result.Fixed, models.FixedIssue{IssueID: "issue-1"})
	result.Log = append(result.Log, "pause: wait 0s → 3600s")

	require.NoError(t, bus.Publish(t.Context(), "wf-kafka", events.NewRepairCompleted(result)))

	select {
	case event := <-received:
		assert.Equal(t, "wf-kafka", event.WorkflowID)
		assert.Equal(t, 1, event.Entry.FixedCount)
		assert.Equal(t, result.Log, event.Entry.Log)
	case <-time.After(60 * time.Second):
		t.Fatal("event was not delivered through Kafka")
	}
}
