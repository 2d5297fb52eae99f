// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/google/uuid"
)

// CreateTestWorkflow creates an active workflow with the given steps that can be overridden.
func CreateTestWorkflow(steps []*models.Step, overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		Status:    models.WorkflowStatusActive,
		Steps:     steps,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithWorkflowID sets the workflow ID.
func WithWorkflowID(id string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.ID = id
	}
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithEntry sets the explicit entry step.
func WithEntry(stepID string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.EntryStepID = stepID
	}
}

// EmailStep creates an email step with a valid subject and content.
func EmailStep(id, next string, overrides ...func(*models.Step)) *models.Step {
	return apply(&models.Step{
		ID:         id,
		Type:       models.StepTypeEmail,
		NextStepID: next,
		Payload: &models.EmailPayload{
			Subject: "Your dispute update",
			Content: "Hi {{contact.firstName}}, your dispute letter for {{campaign.name}} was sent.",
		},
	}, overrides)
}

// SMSStep creates a compliant sms step.
func SMSStep(id, next string, overrides ...func(*models.Step)) *models.Step {
	return apply(&models.Step{
		ID:         id,
		Type:       models.StepTypeSMS,
		NextStepID: next,
		Payload:    &models.SMSPayload{Content: "Hi {{contact.firstName}}, check your inbox. Reply STOP to opt out."},
	}, overrides)
}

// WaitStep creates a wait step of the given duration.
func WaitStep(id, next string, seconds int64, overrides ...func(*models.Step)) *models.Step {
	return apply(&models.Step{
		ID:         id,
		Type:       models.StepTypeWait,
		NextStepID: next,
		Payload:    &models.WaitPayload{DurationSeconds: seconds},
	}, overrides)
}

// ConditionalStep creates a conditional step with one branch per target.
func ConditionalStep(id string, targets ...string) *models.Step {
	step := &models.Step{
		ID:      id,
		Type:    models.StepTypeConditional,
		Payload: &models.ConditionalPayload{Expression: "contact.score > 600"},
	}

	for i, target := range targets {
		condition := "otherwise"
		if i == 0 {
			condition = "contact.score > 600"
		}

		step.Branches = append(step.Branches, models.Branch{Condition: condition, TargetStepID: target})
	}

	return step
}

// WebhookStep creates a webhook step posting to a fixed URL.
func WebhookStep(id, next string, overrides ...func(*models.Step)) *models.Step {
	return apply(&models.Step{
		ID:         id,
		Type:       models.StepTypeWebhook,
		NextStepID: next,
		Payload:    &models.WebhookPayload{URL: "https://hooks.example.com/disputes", Method: "POST"},
	}, overrides)
}

// WithContent replaces the text content of an email, sms or webhook step.
func WithContent(content string) func(*models.Step) {
	return func(s *models.Step) {
		switch p := s.Payload.(type) {
		case *models.EmailPayload:
			p.Content = content
		case *models.SMSPayload:
			p.Content = content
		case *models.WebhookPayload:
			p.Content = content
		}
	}
}

// WithSubject replaces the subject of an email step.
func WithSubject(subject string) func(*models.Step) {
	return func(s *models.Step) {
		if p, ok := s.Payload.(*models.EmailPayload); ok {
			p.Subject = subject
		}
	}
}

// WithoutPayload removes the step payload.
func WithoutPayload() func(*models.Step) {
	return func(s *models.Step) {
		s.Payload = nil
	}
}

// AsEntry marks the step as the workflow entry.
func AsEntry() func(*models.Step) {
	return func(s *models.Step) {
		s.IsEntry = true
	}
}

func apply(step *models.Step, overrides []func(*models.Step)) *models.Step {
	for _, override := range overrides {
		override(step)
	}

	return step
}

// HealthyWorkflow returns a small well-formed drip campaign: email, wait, conditional, sms or webhook.
func HealthyWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	return CreateTestWorkflow([]*models.Step{
		EmailStep("welcome", "pause"),
		WaitStep("pause", "check", 86400),
		ConditionalStep("check", "remind", "notify"),
		SMSStep("remind", models.EndStepID),
		WebhookStep("notify", models.EndStepID),
	}, overrides...)
}
