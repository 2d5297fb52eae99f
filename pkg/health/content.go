package health

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	identifierPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	variablePattern    = regexp.MustCompile(`^(contact|campaign|company)\.[a-zA-Z_]+$`)
)

// AuditContent checks step payloads for client-facing defects.
func (e *Engine) AuditContent(workflow *models.Workflow) []*models.Issue {
	return finalize(e.auditContent(workflow.Steps))
}

func (e *Engine) auditContent(steps []*models.Step) []finding {
	var findings []finding

	for i, step := range steps {
		if step == nil || !step.Type.IsKnown() {
			continue
		}

		if step.Payload == nil {
			findings = append(findings, e.missingPayload(step, i))

			continue
		}

		findings = append(findings, e.checkPayload(step, i)...)

		for _, field := range step.TemplateFields() {
			findings = append(findings, e.checkTemplate(step, i, field)...)
		}
	}

	return findings
}

func (e *Engine) missingPayload(step *models.Step, position int) finding {
	f := newFinding(
		models.CodeMissingPayload, models.CategoryContent, models.SeverityCritical,
		step.ID, position, "", fmt.Sprintf("%s step %s has no payload", step.Type, displayID(step, position)),
	)

	if step.Type != models.StepTypeWait {
		return f
	}

	wait := strconv.FormatInt(e.config.MinWaitSeconds, 10)

	return f.withPatch(&models.Patch{
		Summary: fmt.Sprintf("give wait step %s a %ss duration", displayID(step, position), wait),
		Ops: []models.PatchOp{{
			Kind: models.PatchOpSetField, StepID: step.ID, StepIndex: position, Field: models.FieldDuration, NewValue: wait,
		}},
	})
}

func (e *Engine) checkPayload(step *models.Step, position int) []finding {
	var findings []finding

	id := displayID(step, position)

	switch p := step.Payload.(type) {
	case *models.EmailPayload:
		if strings.TrimSpace(p.Subject) == "" {
			f := newFinding(
				models.CodeMissingSubject, models.CategoryContent, models.SeverityCritical,
				step.ID, position, "", fmt.Sprintf("email step %s has no subject", id),
			)

			if e.config.DefaultSubject != "" {
				f = f.withPatch(&models.Patch{
					Summary: fmt.Sprintf("set the subject of email step %s to %q", id, e.config.DefaultSubject),
					Ops: []models.PatchOp{{
						Kind: models.PatchOpSetField, StepID: step.ID, StepIndex: position, Field: models.FieldSubject,
						OldValue: p.Subject, NewValue: e.config.DefaultSubject,
					}},
				})
			}

			findings = append(findings, f)
		}

		if strings.TrimSpace(p.Content) == "" {
			findings = append(findings, missingContent(step, position))
		}

	case *models.SMSPayload:
		if strings.TrimSpace(p.Content) == "" {
			findings = append(findings, missingContent(step, position))

			break
		}

		if !strings.Contains(strings.ToLower(p.Content), strings.ToLower(e.config.OptOutPhrase)) {
			findings = append(findings, newFinding(
				models.CodeMissingOptOut, models.CategoryContent, models.SeverityWarning,
				step.ID, position, "", fmt.Sprintf("sms step %s has no opt-out instruction", id),
			).withPatch(&models.Patch{
				Summary: fmt.Sprintf("append the opt-out footer to sms step %s", id),
				Ops: []models.PatchOp{{
					Kind: models.PatchOpAppendContent, StepID: step.ID, StepIndex: position, Field: models.FieldContent,
					NewValue: e.config.OptOutFooter,
				}},
			}))
		}

	case *models.WebhookPayload:
		if strings.TrimSpace(p.URL) == "" {
			findings = append(findings, newFinding(
				models.CodeMissingWebhookURL, models.CategoryContent, models.SeverityCritical,
				step.ID, position, "", fmt.Sprintf("webhook step %s has no url", id),
			))
		}
	}

	return findings
}

func missingContent(step *models.Step, position int) finding {
	return newFinding(
		models.CodeMissingContent, models.CategoryContent, models.SeverityCritical,
		step.ID, position, "", fmt.Sprintf("%s step %s has no content", step.Type, displayID(step, position)),
	)
}

// checkTemplate reports every distinct bad placeholder of a field once.
func (e *Engine) checkTemplate(step *models.Step, position int, field models.TemplateField) []finding {
	var findings []finding

	id := displayID(step, position)
	seen := make(map[string]bool)

	for _, match := range placeholderPattern.FindAllStringSubmatch(field.Value, -1) {
		token, name := match[0], match[1]
		if seen[token] {
			continue
		}

		seen[token] = true

		if !identifierPattern.MatchString(name) {
			findings = append(findings, newFinding(
				models.CodeTemplateCorruption, models.CategoryContent, models.SeverityWarning,
				step.ID, position, field.Name+":"+token,
				fmt.Sprintf("%s of step %s has a malformed placeholder %s", field.Name, id, token),
			))

			continue
		}

		if variablePattern.MatchString(name) {
			continue
		}

		f := newFinding(
			models.CodeUnknownVariable, models.CategoryContent, models.SeverityWarning,
			step.ID, position, field.Name+":"+token,
			fmt.Sprintf("%s of step %s uses unknown variable %s", field.Name, id, token),
		)

		if replacement, ok := e.config.VariableRenames[name]; ok && variablePattern.MatchString(replacement) {
			newToken := "{{" + replacement + "}}"
			f = f.withPatch(&models.Patch{
				Summary: fmt.Sprintf("replace %s with %s in %s of step %s", token, newToken, field.Name, id),
				Ops: []models.PatchOp{{
					Kind: models.PatchOpReplaceContent, StepID: step.ID, StepIndex: position, Field: field.Name,
					OldValue: token, NewValue: newToken,
				}},
			})
		}

		findings = append(findings, f)
	}

	rest := placeholderPattern.ReplaceAllString(field.Value, "")
	for _, brace := range strayBraces(rest) {
		findings = append(findings, newFinding(
			models.CodeTemplateCorruption, models.CategoryContent, models.SeverityWarning,
			step.ID, position, field.Name+":"+brace,
			fmt.Sprintf("%s of step %s has an unbalanced %s", field.Name, id, brace),
		))
	}

	return findings
}

func strayBraces(text string) []string {
	var out []string

	for _, brace := range []string{"{{", "}}"} {
		if strings.Contains(text, brace) {
			out = append(out, brace)
		}
	}

	sort.Strings(out)

	return out
}

// displayID names a step in messages, falling back to its position when it has no ID.
func displayID(step *models.Step, position int) string {
	if step.ID != "" {
		return step.ID
	}

	return "#" + strconv.Itoa(position+1)
}
