package health

import (
	"fmt"
	"strconv"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/xrash/smetrics"
)

// AuditPerformance looks for delays and waste. latencies holds observed average step latencies
// and may be nil when no latency source is available.
func (e *Engine) AuditPerformance(workflow *models.Workflow, latencies map[string]time.Duration) []*models.Issue {
	return finalize(e.auditPerformance(workflow.Steps, latencies))
}

func (e *Engine) auditPerformance(steps []*models.Step, latencies map[string]time.Duration) []finding {
	var findings []finding

	findings = append(findings, e.checkWaits(steps)...)
	findings = append(findings, e.checkRedundancy(steps)...)
	findings = append(findings, e.checkLatency(steps, latencies)...)

	return findings
}

func (e *Engine) checkWaits(steps []*models.Step) []finding {
	var findings []finding

	for i, step := range steps {
		if step == nil || step.Type != models.StepTypeWait {
			continue
		}

		wait, ok := step.Payload.(*models.WaitPayload)
		if !ok || wait.DurationSeconds > 0 {
			continue
		}

		id := displayID(step, i)
		current := strconv.FormatInt(wait.DurationSeconds, 10)
		target := strconv.FormatInt(e.config.MinWaitSeconds, 10)

		findings = append(findings, newFinding(
			models.CodeZeroDurationWait, models.CategoryLogic, models.SeverityCritical,
			step.ID, i, "", fmt.Sprintf("wait step %s has a duration of %ss", id, current),
		).withPatch(&models.Patch{
			Summary: fmt.Sprintf("set the duration of wait step %s to %ss", id, target),
			Ops: []models.PatchOp{{
				Kind: models.PatchOpSetField, StepID: step.ID, StepIndex: i, Field: models.FieldDuration,
				OldValue: current, NewValue: target,
			}},
		}))
	}

	return findings
}

var sendTypes = map[models.StepType]bool{
	models.StepTypeEmail:   true,
	models.StepTypeSMS:     true,
	models.StepTypeWebhook: true,
}

// checkRedundancy flags a send step that directly follows a near-identical send of the same type.
func (e *Engine) checkRedundancy(steps []*models.Step) []finding {
	var findings []finding

	g := buildGraph(steps, "")

	for i, step := range steps {
		if step == nil || step.ID == "" || g.first[step.ID] != i || !sendTypes[step.Type] {
			continue
		}

		next := g.node(step.NextStepID)
		if next == nil || next.Type != step.Type || next.Payload == nil || step.Payload == nil {
			continue
		}

		score := Similarity(step.RenderedPayload(), next.RenderedPayload())
		if score < e.config.SimilarityThreshold {
			continue
		}

		findings = append(findings, newFinding(
			models.CodeRedundantStep, models.CategoryPerformance, models.SeveritySuggestion,
			next.ID, g.first[next.ID], step.ID,
			fmt.Sprintf("%s step %s repeats step %s (%.0f%% similar)", next.Type, next.ID, step.ID, score*100),
		))
	}

	return findings
}

func (e *Engine) checkLatency(steps []*models.Step, latencies map[string]time.Duration) []finding {
	var findings []finding

	if len(latencies) == 0 {
		return findings
	}

	seen := make(map[string]bool)

	for i, step := range steps {
		if step == nil || step.ID == "" || seen[step.ID] {
			continue
		}

		seen[step.ID] = true

		latency, ok := latencies[step.ID]
		if !ok || latency < e.config.SlowStepThreshold {
			continue
		}

		findings = append(findings, newFinding(
			models.CodeSlowStep, models.CategoryPerformance, models.SeveritySuggestion,
			step.ID, i, "", fmt.Sprintf("step %s averages %s, above the %s threshold", step.ID, latency, e.config.SlowStepThreshold),
		))
	}

	return findings
}

// Similarity is 1 minus the Levenshtein distance over the longer length. Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}

	distance := smetrics.WagnerFischer(a, b, 1, 1, 1)

	return 1 - float64(distance)/float64(longest)
}
