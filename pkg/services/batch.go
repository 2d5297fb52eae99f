package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// BatchRequest selects the workflows of a batch analysis. No ids means every active workflow.
type BatchRequest struct {
	WorkflowIDs    []string `json:"workflow_ids,omitempty"`
	MinHealthScore int      `json:"min_health_score,omitempty"`
}

// ErrAnalysisTimeout marks a batch item that exceeded the per-workflow timeout.
var ErrAnalysisTimeout = errors.New("analysis timed out")

type analysisResult struct {
	report *models.HealthReport
	err    error
}

// BatchAnalyze analyzes many workflows concurrently. One workflow's failure is recorded on its item and
// never aborts the others. Results follow the order of the requested ids.
func (w *WorkflowHealth) BatchAnalyze(ctx context.Context, req BatchRequest) (*models.BatchSummary, error) {
	if len(req.WorkflowIDs) > MaxBatchSize {
		return nil, NewValidationError("BatchAnalyze", "BATCH_TOO_LARGE",
			fmt.Sprintf("%d workflow ids requested, at most %d allowed", len(req.WorkflowIDs), MaxBatchSize),
			ErrBatchTooLarge)
	}

	if req.MinHealthScore < 0 || req.MinHealthScore > 100 {
		return nil, NewValidationError("BatchAnalyze", "INVALID_MIN_HEALTH_SCORE",
			fmt.Sprintf("min health score %d out of range", req.MinHealthScore), ErrInvalidHealthScore)
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow_health.batch")
	defer span.End()

	ids := req.WorkflowIDs
	if len(ids) == 0 {
		var err error

		ids, err = w.persistence.WorkflowRepository().ListIDs(ctx, models.WorkflowStatusActive)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to list active workflows: %w", err)
		}
	}

	span.SetAttributes(attribute.Int(otelhelper.BatchSizeKey, len(ids)))

	items := make([]models.BatchItem, len(ids))

	var group errgroup.Group
	group.SetLimit(w.config.BatchConcurrency)

	for i, id := range ids {
		group.Go(func() error {
			items[i] = w.batchItem(ctx, id)

			return nil
		})
	}

	_ = group.Wait()

	summary := summarize(items, req.MinHealthScore)
	w.metrics.ObserveBatch(summary)

	w.loggerFrom(ctx).InfoContext(ctx, "Batch analysis finished",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"average_health_score", summary.AverageHealthScore)

	return summary, nil
}

// batchItem analyzes one workflow under the per-workflow timeout. The timeout is enforced even when the
// store ignores context cancellation.
func (w *WorkflowHealth) batchItem(ctx context.Context, id string) models.BatchItem {
	item := models.BatchItem{WorkflowID: id}

	ctx, cancel := context.WithTimeout(ctx, w.config.PerWorkflowTimeout)
	defer cancel()

	done := make(chan analysisResult, 1)

	go func() {
		report, err := w.AnalyzeWorkflowHealth(ctx, id)
		done <- analysisResult{report: report, err: err}
	}()

	var result analysisResult

	select {
	case result = <-done:
	case <-ctx.Done():
		result.err = fmt.Errorf("%w after %s: %w", ErrAnalysisTimeout, w.config.PerWorkflowTimeout, ctx.Err())
	}

	if result.err != nil {
		w.loggerFrom(ctx).WarnContext(ctx, "Batch item failed", "workflow_id", id, "error", result.err)

		item.Error = result.err.Error()

		return item
	}

	item.Success = true
	item.HealthReport = result.report

	return item
}

func summarize(items []models.BatchItem, minHealthScore int) *models.BatchSummary {
	summary := &models.BatchSummary{
		Results:        items,
		Total:          len(items),
		MinHealthScore: minHealthScore,
	}

	total := 0

	for _, item := range items {
		if !item.Success {
			summary.Failed++

			continue
		}

		summary.Successful++
		total += item.HealthReport.HealthScore

		if item.HealthReport.HealthScore < minHealthScore {
			summary.BelowThreshold++
		}

		switch item.HealthReport.Status {
		case models.HealthStatusCritical, models.HealthStatusPoor:
			summary.CriticalOrPoor++
		}
	}

	if summary.Successful > 0 {
		summary.AverageHealthScore = float64(total) / float64(summary.Successful)
	}

	return summary
}

// DailySweep analyzes every active workflow and publishes a digest. It never fails: there is no caller to
// report to, so errors end up in the log and in the digest.
func (w *WorkflowHealth) DailySweep(ctx context.Context) *models.SweepDigest {
	digest := &models.SweepDigest{ID: events.NewID(), RanAt: w.now()}

	summary, err := w.BatchAnalyze(ctx, BatchRequest{MinHealthScore: w.config.SweepMinHealthScore})
	if err != nil {
		w.loggerFrom(ctx).ErrorContext(ctx, "Daily sweep failed", "error", err)

		digest.Error = err.Error()
	} else {
		digest.Total = summary.Total
		digest.Successful = summary.Successful
		digest.Failed = summary.Failed
		digest.BelowThreshold = summary.BelowThreshold
		digest.CriticalOrPoor = summary.CriticalOrPoor
		digest.AverageHealthScore = summary.AverageHealthScore

		for _, item := range summary.Results {
			if !item.Success {
				digest.FailedWorkflowIDs = append(digest.FailedWorkflowIDs, item.WorkflowID)
			}
		}
	}

	w.metrics.ObserveSweep(digest)
	w.publish(ctx, "sweep", events.NewSweepCompleted(digest))

	w.loggerFrom(ctx).InfoContext(ctx, "Daily sweep finished",
		"digest_id", digest.ID,
		"total", digest.Total,
		"failed", digest.Failed,
		"critical_or_poor", digest.CriticalOrPoor)

	return digest
}
