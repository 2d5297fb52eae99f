package health

import (
	"sort"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

// Plan splits issues into the ones the executor can fix unattended and the ones needing an admin.
// Immediate is ordered by severity, then step, then issue ID.
func Plan(issues []*models.Issue) models.RepairPlan {
	plan := models.RepairPlan{
		Immediate: []*models.Issue{},
		Manual:    []*models.Issue{},
	}

	for _, issue := range issues {
		if issue.AutoFixable && issue.ProposedPatch != nil {
			plan.Immediate = append(plan.Immediate, issue)
		} else {
			plan.Manual = append(plan.Manual, issue)
		}
	}

	sort.SliceStable(plan.Immediate, func(i, j int) bool {
		a, b := plan.Immediate[i], plan.Immediate[j]

		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}

		if a.StepID != b.StepID {
			return a.StepID < b.StepID
		}

		return a.ID < b.ID
	})

	return plan
}
