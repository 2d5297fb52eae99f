package services

import (
	"context"
	"fmt"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// AnalyzeWorkflowHealth loads a workflow and returns its health report.
func (w *WorkflowHealth) AnalyzeWorkflowHealth(ctx context.Context, id string) (*models.HealthReport, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow_health.analyze",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	started := time.Now()

	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	report := w.analyze(ctx, workflow)

	span.SetAttributes(
		attribute.Int(otelhelper.HealthScoreKey, report.HealthScore),
		attribute.String(otelhelper.HealthStatusKey, string(report.Status)),
		attribute.Int(otelhelper.IssueCountKey, len(report.Issues.All())),
	)

	w.recordHealth(ctx, workflow, report)
	w.metrics.ObserveReport(report, time.Since(started))
	w.publish(ctx, workflow.ID, events.NewHealthReportGenerated(report))

	w.loggerFrom(ctx).InfoContext(ctx, "Workflow analyzed",
		"workflow_id", workflow.ID,
		"health_score", report.HealthScore,
		"status", report.Status,
		"issues", len(report.Issues.All()))

	return report, nil
}

// analyze runs the engine over the workflow and its latency data.
func (w *WorkflowHealth) analyze(ctx context.Context, workflow *models.Workflow) *models.HealthReport {
	return w.engine.Analyze(workflow, w.latenciesFor(ctx, workflow.ID), w.now())
}

// latenciesFor degrades a failing latency source to no latency data.
func (w *WorkflowHealth) latenciesFor(ctx context.Context, workflowID string) map[string]time.Duration {
	latencies, err := w.latencies.Latencies(ctx, workflowID)
	if err != nil {
		w.loggerFrom(ctx).WarnContext(ctx, "Latency data unavailable, skipping slow step checks",
			"workflow_id", workflowID, "error", err)

		return nil
	}

	return latencies
}

// recordHealth writes score, status and check time back to the workflow. Losing the race against
// another writer is only logged: the next analysis records again.
func (w *WorkflowHealth) recordHealth(ctx context.Context, workflow *models.Workflow, report *models.HealthReport) {
	if !w.config.RecordHealth {
		return
	}

	patch := models.NewWorkflowPatch().
		Set(models.WorkflowFieldHealthScore, report.HealthScore).
		Set(models.WorkflowFieldHealthStatus, report.Status).
		ServerTime(models.WorkflowFieldLastHealthCheckDate)

	_, err := w.persistence.WorkflowRepository().Update(ctx, workflow.ID, patch, workflow.Version)
	if err != nil {
		w.loggerFrom(ctx).WarnContext(ctx, "Failed to record health on workflow",
			"workflow_id", workflow.ID, "error", fmt.Errorf("record health: %w", err))
	}
}
