// Package models defines the core domain models for client-automation workflows and their health.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Being edited in the builder
	WorkflowStatusActive   WorkflowStatus = "active"   // Enrolled clients are moving through it
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily halted
	WorkflowStatusArchived WorkflowStatus = "archived" // Retired, kept for history
)

// ValidWorkflowStatuses lists every accepted workflow status.
var ValidWorkflowStatuses = []WorkflowStatus{
	WorkflowStatusDraft,
	WorkflowStatusActive,
	WorkflowStatusPaused,
	WorkflowStatusArchived,
}

// Workflow is a client-facing automation sequence (drip campaign, dispute follow-up, onboarding)
// modelled as a directed graph of steps.
type Workflow struct {
	ID          string         `json:"id"                      validate:"required"`
	Name        string         `json:"name"`
	Status      WorkflowStatus `json:"status"                  validate:"required,oneof=draft active paused archived"`
	EntryStepID string         `json:"entry_step_id,omitempty"`
	Steps       []*Step        `json:"steps"`

	// Health bookkeeping, written only by the health engine.
	HealthScore         int          `json:"health_score"`
	HealthStatus        HealthStatus `json:"health_status,omitempty"`
	LastHealthCheckDate *time.Time   `json:"last_health_check_date,omitempty"`
	LastRepairDate      *time.Time   `json:"last_repair_date,omitempty"`
	TotalRepairsMade    int          `json:"total_repairs_made"`

	// Version is the optimistic concurrency token; every successful write bumps it.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the workflow so callers can mutate steps freely.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Steps = CloneSteps(w.Steps)

	if w.LastHealthCheckDate != nil {
		t := *w.LastHealthCheckDate
		clone.LastHealthCheckDate = &t
	}

	if w.LastRepairDate != nil {
		t := *w.LastRepairDate
		clone.LastRepairDate = &t
	}

	return &clone
}

// CloneSteps deep-copies a step list.
func CloneSteps(steps []*Step) []*Step {
	if steps == nil {
		return nil
	}

	out := make([]*Step, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}

	return out
}
