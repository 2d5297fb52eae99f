package health

import (
	"sort"
	"strconv"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/google/uuid"
)

// issueNamespace seeds deterministic issue IDs so unchanged workflows yield identical reports.
var issueNamespace = uuid.MustParse("6f1c7c1e-3b55-4a8e-9d52-6e0b4f4f8a11")

// finding is an issue under construction. detail discriminates issues sharing a code and step,
// position is the step's slice index and only breaks ties.
type finding struct {
	issue    *models.Issue
	detail   string
	position int
}

func (f finding) signature() string {
	return f.issue.Code + "|" + f.issue.StepID + "|" + f.detail
}

func newFinding(code string, category models.IssueCategory, severity models.Severity, stepID string, position int, detail, description string) finding {
	return finding{
		issue: &models.Issue{
			Code:        code,
			Category:    category,
			Severity:    severity,
			StepID:      stepID,
			Description: description,
		},
		detail:   detail,
		position: position,
	}
}

func (f finding) withPatch(patch *models.Patch) finding {
	f.issue.AutoFixable = true
	f.issue.ProposedPatch = patch

	return f
}

// finalize orders findings by (severity, category, step, position, code, detail) and assigns IDs.
func finalize(findings []finding) []*models.Issue {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]

		if a.issue.Severity.Rank() != b.issue.Severity.Rank() {
			return a.issue.Severity.Rank() < b.issue.Severity.Rank()
		}

		if a.issue.Category != b.issue.Category {
			return a.issue.Category < b.issue.Category
		}

		if a.issue.StepID != b.issue.StepID {
			return a.issue.StepID < b.issue.StepID
		}

		if a.position != b.position {
			return a.position < b.position
		}

		if a.issue.Code != b.issue.Code {
			return a.issue.Code < b.issue.Code
		}

		return a.detail < b.detail
	})

	seen := make(map[string]int, len(findings))
	issues := make([]*models.Issue, 0, len(findings))

	for _, f := range findings {
		sig := f.signature()
		seen[sig]++

		if n := seen[sig]; n > 1 {
			sig += "#" + strconv.Itoa(n)
		}

		f.issue.ID = uuid.NewSHA1(issueNamespace, []byte(sig)).String()
		issues = append(issues, f.issue)
	}

	return issues
}

// rename records a step ID change made by a patch.
type rename struct {
	position int
	from     string
	to       string
}

// blockingSignatures counts critical structural/logic findings by signature. Findings of a renamed step
// are counted under its former ID, so defects it already had do not read as new once it is renamed.
func blockingSignatures(findings []finding, renames ...rename) map[string]int {
	counts := make(map[string]int)

	for _, f := range findings {
		if !f.issue.IsBlocking() {
			continue
		}

		stepID := f.issue.StepID

		for _, r := range renames {
			if f.position == r.position && stepID == r.to {
				stepID = r.from
			}
		}

		counts[f.issue.Code+"|"+stepID+"|"+f.detail]++
	}

	return counts
}

// regressed reports whether after holds a blocking finding that before did not.
func regressed(before, after map[string]int) bool {
	for sig, n := range after {
		if n > before[sig] {
			return true
		}
	}

	return false
}
