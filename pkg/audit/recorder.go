// Package audit persists the health audit trail from events published on the bus.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creditflow/workflowdoctor/pkg/eventbus"
	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
)

// Recorder appends health reports, repair logs and sweep digests to the audit repository.
type Recorder struct {
	repository persistence.AuditRepository
	logger     *slog.Logger
}

func NewRecorder(repository persistence.AuditRepository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repository: repository,
		logger:     logger.With("module", "audit_recorder"),
	}
}

// Register subscribes the recorder's handlers on the bus. The caller still has to call Subscribe.
func (r *Recorder) Register(subscriber eventbus.EventSubscriber) error {
	if err := subscriber.Handle(events.HealthReportGeneratedEvent, r.handleHealthReport); err != nil {
		return fmt.Errorf("failed to subscribe to %s events: %w", events.HealthReportGeneratedEvent, err)
	}

	if err := subscriber.Handle(events.RepairCompletedEvent, r.handleRepairCompleted); err != nil {
		return fmt.Errorf("failed to subscribe to %s events: %w", events.RepairCompletedEvent, err)
	}

	if err := subscriber.Handle(events.SweepCompletedEvent, r.handleSweepCompleted); err != nil {
		return fmt.Errorf("failed to subscribe to %s events: %w", events.SweepCompletedEvent, err)
	}

	r.logger.Info("Audit subscriptions configured")

	return nil
}

func (r *Recorder) handleHealthReport(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.HealthReportGenerated)
	if !ok || event.Summary == nil {
		return fmt.Errorf("invalid event type for %s: %T", events.HealthReportGeneratedEvent, eventData)
	}

	if err := r.repository.AppendHealthReport(ctx, event.Summary); err != nil {
		return fmt.Errorf("failed to record health report %s: %w", event.Summary.ID, err)
	}

	r.logger.DebugContext(ctx, "Health report recorded",
		"workflow_id", event.Summary.WorkflowID,
		"health_score", event.Summary.HealthScore)

	return nil
}

func (r *Recorder) handleRepairCompleted(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.RepairCompleted)
	if !ok || event.Entry == nil {
		return fmt.Errorf("invalid event type for %s: %T", events.RepairCompletedEvent, eventData)
	}

	if err := r.repository.AppendRepairLog(ctx, event.Entry); err != nil {
		return fmt.Errorf("failed to record repair log %s: %w", event.Entry.ID, err)
	}

	r.logger.DebugContext(ctx, "Repair log recorded",
		"workflow_id", event.Entry.WorkflowID,
		"fixed", event.Entry.FixedCount)

	return nil
}

func (r *Recorder) handleSweepCompleted(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.SweepCompleted)
	if !ok || event.Digest == nil {
		return fmt.Errorf("invalid event type for %s: %T", events.SweepCompletedEvent, eventData)
	}

	if err := r.repository.AppendDigest(ctx, event.Digest); err != nil {
		return fmt.Errorf("failed to record sweep digest %s: %w", event.Digest.ID, err)
	}

	r.logger.InfoContext(ctx, "Sweep digest recorded", "digest_id", event.Digest.ID, "total", event.Digest.Total)

	return nil
}
