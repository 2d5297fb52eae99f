package events

import (
	"testing"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHealthReportGenerated(t *testing.T) {
	report := &models.HealthReport{
		WorkflowID:      "wf-1",
		WorkflowVersion: 3,
		HealthScore:     85,
		Status:          models.HealthStatusWarning,
		Issues: models.IssueGroups{
			Critical: []*models.Issue{{ID: "a", Severity: models.SeverityCritical}},
		},
		AnalyzedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	event := NewHealthReportGenerated(report)

	assert.Equal(t, HealthReportGeneratedEvent, event.GetType())
	assert.Equal(t, event.ID, event.GetID())
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, event.ID, event.Summary.ID)
	assert.Equal(t, 1, event.Summary.CriticalCount)
	assert.Equal(t, int64(3), event.Summary.WorkflowVersion)
}

func TestNewRepairCompleted(t *testing.T) {
	result := models.NewRepairResult("wf-1")
	result.Fixed = append(result.Fixed, models.FixedIssue{IssueID: "a"})
	result.Skipped = append(result.Skipped, models.SkippedIssue{IssueID: "b"}, models.SkippedIssue{IssueID: "c"})
	result.Log = append(result.Log, "issue a (zero_duration_wait): step pause: duration \"0\" → \"3600\"")

	event := NewRepairCompleted(result)

	assert.Equal(t, RepairCompletedEvent, event.GetType())
	assert.Equal(t, 1, event.Entry.FixedCount)
	assert.Equal(t, 2, event.Entry.SkippedCount)
	assert.Equal(t, 0, event.Entry.FailedCount)
	assert.Equal(t, result.Log, event.Entry.Log)
}

func TestSweepCompleted_RoundTrip(t *testing.T) {
	digest := &models.SweepDigest{Total: 4, Failed: 1, FailedWorkflowIDs: []string{"wf-9"}}

	event := NewSweepCompleted(digest)
	require.NotEmpty(t, digest.ID)

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded SweepCompleted
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, SweepCompletedEvent, decoded.Type)
	assert.Equal(t, digest.FailedWorkflowIDs, decoded.Digest.FailedWorkflowIDs)
}
