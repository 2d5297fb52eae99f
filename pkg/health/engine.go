package health

import (
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

// Engine runs the validators, auditors, scorer and planner over a workflow. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	config Config
}

// NewEngine builds an engine, completing cfg with the defaults.
func NewEngine(cfg Config) (*Engine, error) {
	full, err := NewConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Engine{config: full}, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Analyze produces the health report of workflow. latencies may be nil.
func (e *Engine) Analyze(workflow *models.Workflow, latencies map[string]time.Duration, now time.Time) *models.HealthReport {
	issues := finalize(e.findings(workflow.Steps, workflow.EntryStepID, latencies))
	score, status := e.Rate(issues)

	return &models.HealthReport{
		WorkflowID:      workflow.ID,
		WorkflowVersion: workflow.Version,
		HealthScore:     score,
		Status:          status,
		Issues:          Group(issues),
		RepairPlan:      Plan(issues),
		AnalyzedAt:      now.UTC(),
	}
}

func (e *Engine) findings(steps []*models.Step, entryStepID string, latencies map[string]time.Duration) []finding {
	findings := e.validateGraph(steps, entryStepID)
	findings = append(findings, e.auditContent(steps)...)

	return append(findings, e.auditPerformance(steps, latencies)...)
}
