// Package web provides the HTTP handlers of the workflow health API.
package web

import "github.com/creditflow/workflowdoctor/pkg/models"

// RepairWorkflowRequest is the body of POST /workflows/:id/repair.
type RepairWorkflowRequest struct {
	AutoFix  bool     `json:"auto_fix"`
	IssueIDs []string `json:"issue_ids,omitempty" validate:"omitempty,dive,required"`
}

// BatchAnalyzeRequest is the body of POST /workflows/health/batch. The id cap is enforced by the service.
type BatchAnalyzeRequest struct {
	WorkflowIDs    []string `json:"workflow_ids,omitempty"     validate:"omitempty,dive,required"`
	MinHealthScore int      `json:"min_health_score,omitempty" validate:"min=0,max=100"`
}

// HealthHistoryResponse wraps the audit trail of a workflow.
type HealthHistoryResponse struct {
	WorkflowID string                        `json:"workflow_id"`
	Reports    []*models.HealthReportSummary `json:"reports"`
	Count      int                           `json:"count"`
}
