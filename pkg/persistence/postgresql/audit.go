package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/creditflow/workflowdoctor/pkg/models"
	json "github.com/goccy/go-json"
)

// AuditRepository persists the health audit trail.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// AppendHealthReport records a health report summary.
func (r *AuditRepository) AppendHealthReport(ctx context.Context, summary *models.HealthReportSummary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO health_reports (
			id, workflow_id, workflow_version, health_score, status,
			critical_count, warning_count, suggestion_count, auto_fixable_count, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		summary.ID,
		summary.WorkflowID,
		summary.WorkflowVersion,
		summary.HealthScore,
		string(summary.Status),
		summary.CriticalCount,
		summary.WarningCount,
		summary.SuggestionCount,
		summary.AutoFixableCount,
		summary.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert health report: %w", err)
	}

	return nil
}

// AppendRepairLog records a repair pass.
func (r *AuditRepository) AppendRepairLog(ctx context.Context, entry *models.RepairLogEntry) error {
	logLines, err := json.Marshal(entry.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal repair log: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO repair_logs (id, workflow_id, fixed_count, skipped_count, failed_count, log, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		entry.WorkflowID,
		entry.FixedCount,
		entry.SkippedCount,
		entry.FailedCount,
		logLines,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert repair log: %w", err)
	}

	return nil
}

// AppendDigest records a sweep digest.
func (r *AuditRepository) AppendDigest(ctx context.Context, digest *models.SweepDigest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep digest: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sweep_digests (id, ran_at, payload) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		digest.ID, digest.RanAt, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep digest: %w", err)
	}

	return nil
}

// ListHealthReports returns up to limit summaries of a workflow, newest first. A non-positive limit lists all.
func (r *AuditRepository) ListHealthReports(ctx context.Context, workflowID string, limit int) ([]*models.HealthReportSummary, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , workflow_version
		  , health_score
		  , status
		  , critical_count
		  , warning_count
		  , suggestion_count
		  , auto_fixable_count
		  , recorded_at
		FROM health_reports
		WHERE workflow_id = $1
		ORDER BY recorded_at DESC, id DESC`
	args := []any{workflowID}

	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query health reports: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	summaries := make([]*models.HealthReportSummary, 0)

	for rows.Next() {
		var (
			summary models.HealthReportSummary
			status  string
		)

		err := rows.Scan(
			&summary.ID,
			&summary.WorkflowID,
			&summary.WorkflowVersion,
			&summary.HealthScore,
			&status,
			&summary.CriticalCount,
			&summary.WarningCount,
			&summary.SuggestionCount,
			&summary.AutoFixableCount,
			&summary.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health report: %w", err)
		}

		summary.Status = models.HealthStatus(status)
		summary.RecordedAt = summary.RecordedAt.UTC()
		summaries = append(summaries, &summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating health reports: %w", err)
	}

	return summaries, nil
}
