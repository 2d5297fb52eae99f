package health

import "github.com/creditflow/workflowdoctor/pkg/models"

// Score computes the health score with the default weights.
func Score(issues []*models.Issue) int {
	return ScoreWithWeights(issues, DefaultWeights)
}

// ScoreWithWeights deducts per-severity weights from 100, floored at 0.
func ScoreWithWeights(issues []*models.Issue, weights Weights) int {
	score := 100

	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			score -= weights.Critical
		case models.SeverityWarning:
			score -= weights.Warning
		case models.SeveritySuggestion:
			score -= weights.Suggestion
		}
	}

	return max(score, 0)
}

// Score computes the health score with the engine's weights.
func (e *Engine) Score(issues []*models.Issue) int {
	return ScoreWithWeights(issues, e.config.Weights)
}

// Group partitions issues by severity, keeping their order.
func Group(issues []*models.Issue) models.IssueGroups {
	groups := models.IssueGroups{
		Critical:    []*models.Issue{},
		Warnings:    []*models.Issue{},
		Suggestions: []*models.Issue{},
	}

	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			groups.Critical = append(groups.Critical, issue)
		case models.SeverityWarning:
			groups.Warnings = append(groups.Warnings, issue)
		default:
			groups.Suggestions = append(groups.Suggestions, issue)
		}
	}

	return groups
}

// Rate returns the engine score together with its status tier.
func (e *Engine) Rate(issues []*models.Issue) (int, models.HealthStatus) {
	score := e.Score(issues)

	return score, models.StatusForScore(score)
}
