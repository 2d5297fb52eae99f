// Package events defines the audit events emitted by health analyses, repairs and sweeps.
package events

import (
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow health event.
const Topic = "workflowdoctor.health.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	HealthReportGeneratedEvent EventType = "workflow.health.report_generated"
	RepairCompletedEvent       EventType = "workflow.health.repair_completed"
	SweepCompletedEvent        EventType = "workflow.health.sweep_completed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// GetID returns the event ID, which also keys the bus message.
func (e BaseEvent) GetID() string {
	return e.ID
}

// NewBaseEvent stamps a new event with a time-ordered ID.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         NewID(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// NewID returns a V7 UUID, falling back to V4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// HealthReportGenerated is emitted after every analysis.
type HealthReportGenerated struct {
	BaseEvent

	Summary *models.HealthReportSummary `json:"summary"`
}

func (e HealthReportGenerated) GetType() EventType {
	return HealthReportGeneratedEvent
}

// RepairCompleted is emitted after a repair pass, whether or not it changed the workflow.
type RepairCompleted struct {
	BaseEvent

	Entry *models.RepairLogEntry `json:"entry"`
}

func (e RepairCompleted) GetType() EventType {
	return RepairCompletedEvent
}

// SweepCompleted carries the digest of a scheduled sweep.
type SweepCompleted struct {
	BaseEvent

	Digest *models.SweepDigest `json:"digest"`
}

func (e SweepCompleted) GetType() EventType {
	return SweepCompletedEvent
}

// NewHealthReportGenerated builds the event for report.
func NewHealthReportGenerated(report *models.HealthReport) *HealthReportGenerated {
	base := NewBaseEvent(HealthReportGeneratedEvent, report.WorkflowID)
	summary := models.SummarizeReport(report)
	summary.ID = base.ID

	return &HealthReportGenerated{BaseEvent: base, Summary: summary}
}

// NewRepairCompleted builds the event for result.
func NewRepairCompleted(result *models.RepairResult) *RepairCompleted {
	base := NewBaseEvent(RepairCompletedEvent, result.WorkflowID)

	return &RepairCompleted{
		BaseEvent: base,
		Entry: &models.RepairLogEntry{
			ID:           base.ID,
			WorkflowID:   result.WorkflowID,
			FixedCount:   len(result.Fixed),
			SkippedCount: len(result.Skipped),
			FailedCount:  len(result.Failed),
			Log:          result.Log,
			RecordedAt:   base.Timestamp,
		},
	}
}

// NewSweepCompleted builds the event for digest. A digest without an ID takes the event's.
func NewSweepCompleted(digest *models.SweepDigest) *SweepCompleted {
	base := NewBaseEvent(SweepCompletedEvent, "")
	if digest.ID == "" {
		digest.ID = base.ID
	}

	return &SweepCompleted{BaseEvent: base, Digest: digest}
}
