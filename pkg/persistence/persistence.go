// Package persistence provides the storage abstraction for workflows and the health audit trail.
package persistence

import (
	"context"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	AuditRepository() AuditRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository is the workflow document store the health engine reads and repairs.
type WorkflowRepository interface {
	// GetByID returns ErrWorkflowNotFound when no workflow has the id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// ListIDs returns the ids of workflows in the given status, all workflows when status is empty.
	ListIDs(ctx context.Context, status models.WorkflowStatus) ([]string, error)
	// Save creates or replaces a workflow document and bumps its version.
	Save(ctx context.Context, workflow *models.Workflow) error
	// Update applies patch only if the stored version equals expectedVersion, returning ErrVersionConflict
	// otherwise. The returned workflow carries the new version.
	Update(ctx context.Context, id string, patch *models.WorkflowPatch, expectedVersion int64) (*models.Workflow, error)
}

// AuditRepository is the append-only trail of health reports, repair logs and sweep digests.
type AuditRepository interface {
	AppendHealthReport(ctx context.Context, summary *models.HealthReportSummary) error
	AppendRepairLog(ctx context.Context, entry *models.RepairLogEntry) error
	AppendDigest(ctx context.Context, digest *models.SweepDigest) error
	// ListHealthReports returns a workflow's most recent summaries first, at most limit of them.
	ListHealthReports(ctx context.Context, workflowID string, limit int) ([]*models.HealthReportSummary, error)
}
