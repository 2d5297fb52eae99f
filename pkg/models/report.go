package models

import "time"

// HealthStatus is the tier derived from a health score.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusPoor     HealthStatus = "poor"
	HealthStatusCritical HealthStatus = "critical"
)

// StatusForScore maps a 0-100 score onto its tier.
func StatusForScore(score int) HealthStatus {
	switch {
	case score >= 90:
		return HealthStatusHealthy
	case score >= 70:
		return HealthStatusWarning
	case score >= 40:
		return HealthStatusPoor
	default:
		return HealthStatusCritical
	}
}

// IssueGroups partitions issues by severity.
type IssueGroups struct {
	Critical    []*Issue `json:"critical"`
	Warnings    []*Issue `json:"warnings"`
	Suggestions []*Issue `json:"suggestions"`
}

// All returns every issue, most severe first.
func (g IssueGroups) All() []*Issue {
	all := make([]*Issue, 0, len(g.Critical)+len(g.Warnings)+len(g.Suggestions))
	all = append(all, g.Critical...)
	all = append(all, g.Warnings...)

	return append(all, g.Suggestions...)
}

// RepairPlan separates automatically fixable issues from the ones needing an admin.
type RepairPlan struct {
	Immediate []*Issue `json:"immediate"`
	Manual    []*Issue `json:"manual"`
}

// HealthReport is the analysis output for one workflow at one point in time.
type HealthReport struct {
	WorkflowID      string       `json:"workflow_id"`
	WorkflowVersion int64        `json:"workflow_version"`
	HealthScore     int          `json:"health_score"`
	Status          HealthStatus `json:"status"`
	Issues          IssueGroups  `json:"issues"`
	RepairPlan      RepairPlan   `json:"repair_plan"`
	AnalyzedAt      time.Time    `json:"analyzed_at"`
}

// FindIssue looks an issue up by ID.
func (r *HealthReport) FindIssue(id string) *Issue {
	for _, issue := range r.Issues.All() {
		if issue.ID == id {
			return issue
		}
	}

	return nil
}

// FixedIssue records an applied patch.
type FixedIssue struct {
	IssueID      string `json:"issue_id"`
	PatchApplied *Patch `json:"patch_applied"`
}

// SkippedIssue records an issue left untouched.
type SkippedIssue struct {
	IssueID string `json:"issue_id"`
	Reason  string `json:"reason"`
}

// FailedIssue records a repair attempt that did not land.
type FailedIssue struct {
	IssueID string `json:"issue_id"`
	Error   string `json:"error"`
}

// RepairResult is the outcome of a repair pass over one workflow.
type RepairResult struct {
	WorkflowID string         `json:"workflow_id"`
	Fixed      []FixedIssue   `json:"fixed"`
	Skipped    []SkippedIssue `json:"skipped"`
	Failed     []FailedIssue  `json:"failed"`
	Log        []string       `json:"log"`
}

// NewRepairResult returns a result with non-nil slices so it always encodes as arrays.
func NewRepairResult(workflowID string) *RepairResult {
	return &RepairResult{
		WorkflowID: workflowID,
		Fixed:      []FixedIssue{},
		Skipped:    []SkippedIssue{},
		Failed:     []FailedIssue{},
		Log:        []string{},
	}
}

// BatchItem is the per-workflow outcome of a batch analysis.
type BatchItem struct {
	WorkflowID   string        `json:"workflow_id"`
	Success      bool          `json:"success"`
	HealthReport *HealthReport `json:"health_report,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// BatchSummary aggregates a batch analysis.
type BatchSummary struct {
	Results            []BatchItem `json:"results"`
	Total              int         `json:"total"`
	Successful         int         `json:"successful"`
	Failed             int         `json:"failed"`
	MinHealthScore     int         `json:"min_health_score"`
	BelowThreshold     int         `json:"below_threshold"`
	CriticalOrPoor     int         `json:"critical_or_poor"`
	AverageHealthScore float64     `json:"average_health_score"`
}

// SweepDigest is the record left by a scheduled health sweep.
type SweepDigest struct {
	ID                 string    `json:"id"`
	RanAt              time.Time `json:"ran_at"`
	Total              int       `json:"total"`
	Successful         int       `json:"successful"`
	Failed             int       `json:"failed"`
	BelowThreshold     int       `json:"below_threshold"`
	CriticalOrPoor     int       `json:"critical_or_poor"`
	AverageHealthScore float64   `json:"average_health_score"`
	FailedWorkflowIDs  []string  `json:"failed_workflow_ids,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// HealthReportSummary is the audit-trail form of a health report.
type HealthReportSummary struct {
	ID               string       `json:"id"`
	WorkflowID       string       `json:"workflow_id"`
	WorkflowVersion  int64        `json:"workflow_version"`
	HealthScore      int          `json:"health_score"`
	Status           HealthStatus `json:"status"`
	CriticalCount    int          `json:"critical_count"`
	WarningCount     int          `json:"warning_count"`
	SuggestionCount  int          `json:"suggestion_count"`
	AutoFixableCount int          `json:"auto_fixable_count"`
	RecordedAt       time.Time    `json:"recorded_at"`
}

// SummarizeReport condenses a report for the audit trail.
func SummarizeReport(report *HealthReport) *HealthReportSummary {
	return &HealthReportSummary{
		WorkflowID:       report.WorkflowID,
		WorkflowVersion:  report.WorkflowVersion,
		HealthScore:      report.HealthScore,
		Status:           report.Status,
		CriticalCount:    len(report.Issues.Critical),
		WarningCount:     len(report.Issues.Warnings),
		SuggestionCount:  len(report.Issues.Suggestions),
		AutoFixableCount: len(report.RepairPlan.Immediate),
		RecordedAt:       report.AnalyzedAt,
	}
}

// RepairLogEntry is the audit-trail form of a repair result.
type RepairLogEntry struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	FixedCount   int       `json:"fixed_count"`
	SkippedCount int       `json:"skipped_count"`
	FailedCount  int       `json:"failed_count"`
	Log          []string  `json:"log"`
	RecordedAt   time.Time `json:"recorded_at"`
}
