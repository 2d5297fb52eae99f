// Package eventbus carries workflow health events between the engine and its audit subscribers.
package eventbus

import (
	"context"

	"github.com/creditflow/workflowdoctor/pkg/events"
)

// Event is anything the health service announces. GetID keys the message so redelivered copies can be
// recognised downstream.
type Event interface {
	GetType() events.EventType
	GetID() string
}

// EventPublisher is the only bus surface the health service needs. key is the workflow ID, or "sweep" for
// sweep digests, and becomes the partition key on Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives the decoded event as a pointer to its concrete type.
type EventHandler func(ctx context.Context, event any) error

// EventSubscriber dispatches events by type. Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
