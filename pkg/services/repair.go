package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/health"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/otelhelper"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// RepairRequest is the caller's repair intent.
type RepairRequest struct {
	AutoFix  bool     `json:"auto_fix"`
	IssueIDs []string `json:"issue_ids,omitempty"`
}

// RepairWorkflow re-analyzes a workflow, applies the selected fixes and writes the result back under an
// optimistic version check. Issue ids must come from an analysis of the current workflow version.
func (w *WorkflowHealth) RepairWorkflow(ctx context.Context, id string, req RepairRequest) (*models.RepairResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow_health.repair",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	latencies := w.latenciesFor(ctx, workflow.ID)
	report := w.engine.Analyze(workflow, latencies, w.now())

	outcome, err := w.engine.Execute(workflow, report, health.RepairRequest{AutoFix: req.AutoFix, IssueIDs: req.IssueIDs})
	if err != nil {
		var unknown *health.UnknownIssuesError
		if errors.As(err, &unknown) {
			err = NewValidationError("RepairWorkflow", "UNKNOWN_ISSUE_IDS", unknown.Error(), ErrUnknownIssueIDs)
		}

		otelhelper.SetError(span, err)

		return nil, err
	}

	result := outcome.Result

	if outcome.Changed {
		err = w.persistRepair(ctx, workflow, outcome, latencies)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int(otelhelper.FixedCountKey, len(result.Fixed)),
		attribute.Int(otelhelper.FailedCountKey, len(result.Failed)),
	)

	w.metrics.ObserveRepair(result)
	w.publish(ctx, workflow.ID, events.NewRepairCompleted(result))

	w.loggerFrom(ctx).InfoContext(ctx, "Workflow repair finished",
		"workflow_id", workflow.ID,
		"fixed", len(result.Fixed),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))

	return result, nil
}

// persistRepair writes the repaired steps and bookkeeping. A version conflict turns every fix into a
// failure and is not an error; any other store error is.
func (w *WorkflowHealth) persistRepair(
	ctx context.Context,
	workflow *models.Workflow,
	outcome *health.RepairOutcome,
	latencies map[string]time.Duration,
) error {
	result := outcome.Result

	repaired := workflow.Clone()
	repaired.Steps = outcome.Steps
	rescored := w.engine.Analyze(repaired, latencies, w.now())

	patch := models.NewWorkflowPatch().
		Set(models.WorkflowFieldSteps, outcome.Steps).
		Set(models.WorkflowFieldHealthScore, rescored.HealthScore).
		Set(models.WorkflowFieldHealthStatus, rescored.Status).
		Increment(models.WorkflowFieldTotalRepairsMade, len(result.Fixed)).
		ServerTime(models.WorkflowFieldLastRepairDate).
		ServerTime(models.WorkflowFieldLastHealthCheckDate)

	_, err := w.persistence.WorkflowRepository().Update(ctx, workflow.ID, patch, workflow.Version)
	if err == nil {
		return nil
	}

	if persistence.IsVersionConflict(err) {
		w.loggerFrom(ctx).WarnContext(ctx, "Repair discarded, workflow changed concurrently",
			"workflow_id", workflow.ID, "expected_version", workflow.Version, "error", err)

		for _, fixed := range result.Fixed {
			result.Failed = append(result.Failed, models.FailedIssue{IssueID: fixed.IssueID, Error: ReasonStaleWorkflow})
		}

		result.Log = append(result.Log, fmt.Sprintf("write-back rejected, %d fix(es) discarded: %s", len(result.Fixed), ReasonStaleWorkflow))
		result.Fixed = []models.FixedIssue{}

		return nil
	}

	return fmt.Errorf("failed to persist repair of workflow %s: %w", workflow.ID, err)
}
