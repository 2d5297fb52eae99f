package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/creditflow/workflowdoctor/pkg/models"
	json "github.com/goccy/go-json"
)

// AuditRepository appends audit records as JSON lines: one file per workflow for health reports and repair
// logs, and a single file for sweep digests.
type AuditRepository struct {
	root string
	mu   sync.Mutex
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(root string) *AuditRepository {
	return &AuditRepository{root: root}
}

// AppendHealthReport records a health report summary.
func (ar *AuditRepository) AppendHealthReport(_ context.Context, summary *models.HealthReportSummary) error {
	if !workflowIDPattern.MatchString(summary.WorkflowID) {
		return fmt.Errorf("invalid workflow id %q for health report", summary.WorkflowID)
	}

	return ar.append(filepath.Join("health_reports", summary.WorkflowID+".jsonl"), summary)
}

// AppendRepairLog records a repair pass.
func (ar *AuditRepository) AppendRepairLog(_ context.Context, entry *models.RepairLogEntry) error {
	if !workflowIDPattern.MatchString(entry.WorkflowID) {
		return fmt.Errorf("invalid workflow id %q for repair log", entry.WorkflowID)
	}

	return ar.append(filepath.Join("repair_logs", entry.WorkflowID+".jsonl"), entry)
}

// AppendDigest records a sweep digest.
func (ar *AuditRepository) AppendDigest(_ context.Context, digest *models.SweepDigest) error {
	return ar.append("sweep_digests.jsonl", digest)
}

// ListHealthReports returns up to limit summaries of a workflow, newest first.
func (ar *AuditRepository) ListHealthReports(_ context.Context, workflowID string, limit int) ([]*models.HealthReportSummary, error) {
	summaries := make([]*models.HealthReportSummary, 0)

	if !workflowIDPattern.MatchString(workflowID) {
		return summaries, nil
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	file, err := os.Open(filepath.Join(ar.root, "audit", "health_reports", workflowID+".jsonl"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return summaries, nil
		}

		return nil, fmt.Errorf("failed to open health reports of workflow %s: %w", workflowID, err)
	}

	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var summary models.HealthReportSummary
		if err := json.Unmarshal(scanner.Bytes(), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode health report of workflow %s: %w", workflowID, err)
		}

		summaries = append(summaries, &summary)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read health reports of workflow %s: %w", workflowID, err)
	}

	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}

	return summaries, nil
}

func (ar *AuditRepository) append(name string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	filePath := filepath.Join(ar.root, "audit", name)

	err = os.MkdirAll(filepath.Dir(filePath), 0750)
	if err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file %s: %w", name, err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		_ = file.Close()

		return fmt.Errorf("failed to append audit record to %s: %w", name, err)
	}

	return file.Close()
}
