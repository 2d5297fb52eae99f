package health

import (
	"fmt"
	"sort"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

const (
	ReasonAutoFixDisabled = "auto-fix disabled"
	ReasonManualReview    = "requires manual review"
)

// RepairRequest selects what a repair pass acts on.
type RepairRequest struct {
	// AutoFix must be true for any patch to be applied.
	AutoFix bool
	// IssueIDs restricts the pass to these issues. Empty means every issue of the report, where only
	// auto-fixable ones are attempted.
	IssueIDs []string
}

// RepairOutcome is the executor's result: the repaired step list and the per-issue record.
type RepairOutcome struct {
	Steps   []*models.Step
	Result  *models.RepairResult
	Changed bool
}

type repairTarget struct {
	issue    *models.Issue
	explicit bool
}

// Execute applies the proposed patches of the targeted issues in report to a working copy of workflow's
// steps. A patch is kept only if re-analysing the copy shows no new critical structural or logic defect.
// Execute never touches the store; the caller persists Outcome.Steps when Changed is true.
func (e *Engine) Execute(workflow *models.Workflow, report *models.HealthReport, req RepairRequest) (*RepairOutcome, error) {
	targets, err := selectTargets(report, req.IssueIDs, workflow.Steps)
	if err != nil {
		return nil, err
	}

	result := models.NewRepairResult(workflow.ID)
	outcome := &RepairOutcome{Steps: models.CloneSteps(workflow.Steps), Result: result}

	if !req.AutoFix {
		for _, target := range targets {
			result.Skipped = append(result.Skipped, models.SkippedIssue{IssueID: target.issue.ID, Reason: ReasonAutoFixDisabled})
		}

		result.Log = append(result.Log, fmt.Sprintf("auto-fix disabled, %d issue(s) left untouched", len(targets)))

		return outcome, nil
	}

	baseline := blockingSignatures(e.findings(outcome.Steps, workflow.EntryStepID, nil))

	for _, target := range targets {
		issue := target.issue

		if !issue.AutoFixable && !target.explicit {
			result.Skipped = append(result.Skipped, models.SkippedIssue{IssueID: issue.ID, Reason: ReasonManualReview})

			continue
		}

		if issue.ProposedPatch == nil {
			result.Failed = append(result.Failed, models.FailedIssue{IssueID: issue.ID, Error: ErrNoPatch.Error()})
			result.Log = append(result.Log, fmt.Sprintf("issue %s (%s): %s", issue.ID, issue.Code, ErrNoPatch))

			continue
		}

		next, lines, err := ApplyPatch(outcome.Steps, issue.ProposedPatch)
		if err != nil {
			result.Failed = append(result.Failed, models.FailedIssue{IssueID: issue.ID, Error: err.Error()})
			result.Log = append(result.Log, fmt.Sprintf("issue %s (%s): failed: %v", issue.ID, issue.Code, err))

			continue
		}

		found := e.findings(next, workflow.EntryStepID, nil)
		if regressed(baseline, blockingSignatures(found, renamesIn(issue.ProposedPatch)...)) {
			result.Failed = append(result.Failed, models.FailedIssue{IssueID: issue.ID, Error: ErrPatchRegression.Error()})
			result.Log = append(result.Log, fmt.Sprintf("issue %s (%s): rolled back, %s", issue.ID, issue.Code, ErrPatchRegression))

			continue
		}

		outcome.Steps = next
		baseline = blockingSignatures(found)

		result.Fixed = append(result.Fixed, models.FixedIssue{IssueID: issue.ID, PatchApplied: issue.ProposedPatch})
		for _, line := range lines {
			result.Log = append(result.Log, fmt.Sprintf("issue %s (%s): %s", issue.ID, issue.Code, line))
		}
	}

	outcome.Changed = len(result.Fixed) > 0

	return outcome, nil
}

// selectTargets resolves the issues a repair acts on, in plan order. Patches that change step IDs run after
// the others and deletions run last, so the IDs and positions recorded by earlier patches stay valid.
func selectTargets(report *models.HealthReport, issueIDs []string, steps []*models.Step) ([]repairTarget, error) {
	var targets []repairTarget

	if len(issueIDs) == 0 {
		for _, issue := range report.RepairPlan.Immediate {
			targets = append(targets, repairTarget{issue: issue})
		}

		for _, issue := range report.RepairPlan.Manual {
			targets = append(targets, repairTarget{issue: issue})
		}
	} else {
		wanted := make(map[string]bool, len(issueIDs))
		for _, id := range issueIDs {
			wanted[id] = true
		}

		ordered := append(append([]*models.Issue(nil), report.RepairPlan.Immediate...), report.RepairPlan.Manual...)
		for _, issue := range ordered {
			if wanted[issue.ID] {
				targets = append(targets, repairTarget{issue: issue, explicit: true})
				delete(wanted, issue.ID)
			}
		}

		if len(wanted) > 0 {
			unknown := make([]string, 0, len(wanted))
			for _, id := range issueIDs {
				if wanted[id] {
					unknown = append(unknown, id)
					delete(wanted, id)
				}
			}

			return nil, &UnknownIssuesError{IssueIDs: unknown}
		}
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return patchPhase(targets[i].issue) < patchPhase(targets[j].issue)
	})

	first := len(targets)
	for i, target := range targets {
		if patchPhase(target.issue) == phaseDelete {
			first = i

			break
		}
	}

	return append(targets[:first], orderDeletions(targets[first:], steps)...), nil
}

// orderDeletions schedules a deleted step only after every deleted step linking to it, so removing a chain
// of unreachable steps never leaves a link dangling. Among ready deletions the highest position goes first,
// which keeps the positions recorded in the remaining patches valid. Deletions caught in a loop of other
// deletions keep position order at the end.
func orderDeletions(deletes []repairTarget, steps []*models.Step) []repairTarget {
	index := make(map[string]int, len(deletes))
	for i, target := range deletes {
		if op, ok := deleteOp(target.issue); ok {
			index[op.OldValue] = i
		}
	}

	blockers := make([]int, len(deletes))
	unblocks := make([][]int, len(deletes))

	for i, target := range deletes {
		op, _ := deleteOp(target.issue)
		if op.StepIndex < 0 || op.StepIndex >= len(steps) || steps[op.StepIndex] == nil {
			continue
		}

		for _, next := range steps[op.StepIndex].Targets() {
			if j, ok := index[next]; ok && j != i {
				blockers[j]++
				unblocks[i] = append(unblocks[i], j)
			}
		}
	}

	ordered := make([]repairTarget, 0, len(deletes))
	done := make([]bool, len(deletes))

	for len(ordered) < len(deletes) {
		pick := -1

		for i := range deletes {
			if done[i] || blockers[i] > 0 {
				continue
			}

			if pick < 0 || deletePosition(deletes[i].issue) > deletePosition(deletes[pick].issue) {
				pick = i
			}
		}

		if pick < 0 {
			break
		}

		done[pick] = true
		ordered = append(ordered, deletes[pick])

		for _, j := range unblocks[pick] {
			blockers[j]--
		}
	}

	var looped []repairTarget

	for i, target := range deletes {
		if !done[i] {
			looped = append(looped, target)
		}
	}

	sort.SliceStable(looped, func(i, j int) bool {
		return deletePosition(looped[i].issue) > deletePosition(looped[j].issue)
	})

	return append(ordered, looped...)
}

const (
	phaseEdit = iota
	phaseIdentity
	phaseDelete
)

func patchPhase(issue *models.Issue) int {
	if issue.ProposedPatch == nil {
		return phaseEdit
	}

	phase := phaseEdit

	for _, op := range issue.ProposedPatch.Ops {
		switch {
		case op.Kind == models.PatchOpDeleteStep:
			return phaseDelete
		case op.Kind == models.PatchOpRenameStep, op.Kind == models.PatchOpSetField && op.Field == models.FieldID:
			phase = phaseIdentity
		}
	}

	return phase
}

// deletePosition returns the position a patch deletes, or -1 when it deletes nothing.
func deletePosition(issue *models.Issue) int {
	op, ok := deleteOp(issue)
	if !ok {
		return -1
	}

	return op.StepIndex
}

func deleteOp(issue *models.Issue) (models.PatchOp, bool) {
	if issue.ProposedPatch == nil {
		return models.PatchOp{}, false
	}

	for _, op := range issue.ProposedPatch.Ops {
		if op.Kind == models.PatchOpDeleteStep {
			return op, true
		}
	}

	return models.PatchOp{}, false
}

// renamesIn lists the ID changes a patch makes.
func renamesIn(patch *models.Patch) []rename {
	var out []rename

	for _, op := range patch.Ops {
		if op.Kind == models.PatchOpRenameStep || (op.Kind == models.PatchOpSetField && op.Field == models.FieldID) {
			out = append(out, rename{position: op.StepIndex, from: op.OldValue, to: op.NewValue})
		}
	}

	return out
}
