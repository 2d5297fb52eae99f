package models

// IssueCategory groups issues by the kind of defect.
type IssueCategory string

const (
	CategoryStructural  IssueCategory = "structural"
	CategoryLogic       IssueCategory = "logic"
	CategoryContent     IssueCategory = "content"
	CategoryPerformance IssueCategory = "performance"
)

// Severity ranks how badly an issue affects client-facing delivery.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Rank orders severities, most severe first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeveritySuggestion:
		return 2
	default:
		return 3
	}
}

// Issue codes produced by the auditors.
const (
	CodeDuplicateStepID    = "duplicate_step_id"
	CodeMissingStepID      = "missing_step_id"
	CodeUnknownStepType    = "unknown_step_type"
	CodeOrphanStep         = "orphan_step"
	CodeBrokenReference    = "broken_reference"
	CodeCycle              = "cycle"
	CodeInvalidBranch      = "invalid_conditional_branch"
	CodeUnknownVariable    = "unknown_template_variable"
	CodeTemplateCorruption = "template_corruption"
	CodeMissingOptOut      = "missing_opt_out"
	CodeMissingSubject     = "missing_subject"
	CodeMissingPayload     = "missing_payload"
	CodeMissingContent     = "missing_content"
	CodeMissingWebhookURL  = "missing_webhook_url"
	CodeZeroDurationWait   = "zero_duration_wait"
	CodeRedundantStep      = "redundant_step"
	CodeSlowStep           = "slow_step"
)

// Issue is a single detected defect. ProposedPatch is present when AutoFixable is true; a cycle issue
// may also carry a suggested patch while staying manual.
type Issue struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Category      IssueCategory `json:"category"`
	Severity      Severity      `json:"severity"`
	StepID        string        `json:"step_id,omitempty"`
	StepIDs       []string      `json:"step_ids,omitempty"`
	Description   string        `json:"description"`
	AutoFixable   bool          `json:"auto_fixable"`
	ProposedPatch *Patch        `json:"proposed_patch,omitempty"`
}

// IsBlocking reports whether the issue is a critical structural or logic defect,
// the class a repair must never introduce.
func (i *Issue) IsBlocking() bool {
	return i.Severity == SeverityCritical &&
		(i.Category == CategoryStructural || i.Category == CategoryLogic)
}
