package health

import (
	"testing"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditContent_HealthyWorkflow(t *testing.T) {
	engine := newTestEngine(t)

	assert.Empty(t, engine.AuditContent(testutil.HealthyWorkflow()))
}

func TestAuditContent_TemplateVariables(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		code        string
		count       int
		autoFixable bool
		replacement string
	}{
		{
			name:        "legacy bare name has a rename",
			content:     "Hi {{firstName}}, your letter is out.",
			code:        models.CodeUnknownVariable,
			count:       1,
			autoFixable: true,
			replacement: "{{contact.firstName}}",
		},
		{
			name:        "padded legacy name is matched as written",
			content:     "Hi {{ firstName }}!",
			code:        models.CodeUnknownVariable,
			count:       1,
			autoFixable: true,
			replacement: "{{contact.firstName}}",
		},
		{
			name:    "unmapped bare name needs review",
			content: "Your balance is {{balance}}.",
			code:    models.CodeUnknownVariable,
			count:   1,
		},
		{
			name:    "unknown namespace needs review",
			content: "Your agent is {{agent.name}}.",
			code:    models.CodeUnknownVariable,
			count:   1,
		},
		{
			name:    "repeated placeholder reported once",
			content: "{{balance}} and again {{balance}}",
			code:    models.CodeUnknownVariable,
			count:   1,
		},
		{
			name:    "malformed placeholder",
			content: "Hi {{contact.first name}}",
			code:    models.CodeTemplateCorruption,
			count:   1,
		},
		{
			name:    "empty placeholder",
			content: "Hi {{}}",
			code:    models.CodeTemplateCorruption,
			count:   1,
		},
		{
			name:    "unclosed placeholder",
			content: "Hi {{contact.firstName, welcome",
			code:    models.CodeTemplateCorruption,
			count:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)
			workflow := testutil.CreateTestWorkflow([]*models.Step{
				testutil.EmailStep("welcome", models.EndStepID, testutil.WithContent(tt.content)),
			})

			issues := engine.AuditContent(workflow)

			require.Len(t, issues, tt.count)

			for _, issue := range issues {
				assert.Equal(t, tt.code, issue.Code)
				assert.Equal(t, models.SeverityWarning, issue.Severity)
				assert.Equal(t, models.CategoryContent, issue.Category)
				assert.Equal(t, tt.autoFixable, issue.AutoFixable)
			}

			if tt.replacement != "" {
				op := issues[0].ProposedPatch.Ops[0]
				assert.Equal(t, models.PatchOpReplaceContent, op.Kind)
				assert.Equal(t, tt.replacement, op.NewValue)
			}
		})
	}
}

func TestAuditContent_RenamedVariablePassesReanalysis(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.EmailStep("welcome", models.EndStepID,
			testutil.WithSubject("Hello {{firstName}}"),
			testutil.WithContent("Dear {{firstName}}, from {{companyName}}")),
	})

	issues := engine.AuditContent(workflow)
	require.Len(t, issues, 3)

	steps := workflow.Steps
	for _, issue := range issues {
		require.True(t, issue.AutoFixable, issue.Description)

		var err error

		steps, _, err = ApplyPatch(steps, issue.ProposedPatch)
		require.NoError(t, err)
	}

	payload := steps[0].Payload.(*models.EmailPayload)
	assert.Equal(t, "Hello {{contact.firstName}}", payload.Subject)
	assert.Equal(t, "Dear {{contact.firstName}}, from {{company.name}}", payload.Content)

	workflow.Steps = steps
	assert.Empty(t, engine.AuditContent(workflow))
}

func TestAuditContent_SMSOptOut(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.SMSStep("remind", models.EndStepID, testutil.WithContent("Your dispute was filed.")),
	})

	issues := engine.AuditContent(workflow)

	require.Len(t, issues, 1)
	assert.Equal(t, models.CodeMissingOptOut, issues[0].Code)
	assert.Equal(t, models.SeverityWarning, issues[0].Severity)
	require.True(t, issues[0].AutoFixable)

	steps, log, err := ApplyPatch(workflow.Steps, issues[0].ProposedPatch)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "Your dispute was filed.\nReply STOP to opt out.", steps[0].Payload.(*models.SMSPayload).Content)

	workflow.Steps = steps
	assert.Empty(t, engine.AuditContent(workflow))
}

func TestAuditContent_OptOutIsCaseInsensitive(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.SMSStep("remind", models.EndStepID, testutil.WithContent("New letter sent. reply Stop to unsubscribe")),
	})

	assert.Empty(t, engine.AuditContent(workflow))
}

func TestAuditContent_RequiredFields(t *testing.T) {
	tests := []struct {
		name        string
		step        *models.Step
		code        string
		autoFixable bool
	}{
		{
			name:        "email without subject",
			step:        testutil.EmailStep("e", models.EndStepID, testutil.WithSubject(" ")),
			code:        models.CodeMissingSubject,
			autoFixable: true,
		},
		{
			name: "email without content",
			step: testutil.EmailStep("e", models.EndStepID, testutil.WithContent("")),
			code: models.CodeMissingContent,
		},
		{
			name: "sms without content",
			step: testutil.SMSStep("s", models.EndStepID, testutil.WithContent("")),
			code: models.CodeMissingContent,
		},
		{
			name:        "wait without payload",
			step:        testutil.WaitStep("w", models.EndStepID, 60, testutil.WithoutPayload()),
			code:        models.CodeMissingPayload,
			autoFixable: true,
		},
		{
			name: "email without payload",
			step: testutil.EmailStep("e", models.EndStepID, testutil.WithoutPayload()),
			code: models.CodeMissingPayload,
		},
		{
			name: "webhook without url",
			step: testutil.WebhookStep("h", models.EndStepID, func(s *models.Step) {
				s.Payload.(*models.WebhookPayload).URL = ""
			}),
			code: models.CodeMissingWebhookURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)

			issues := engine.AuditContent(testutil.CreateTestWorkflow([]*models.Step{tt.step}))

			require.Len(t, issues, 1)
			assert.Equal(t, tt.code, issues[0].Code)
			assert.Equal(t, models.SeverityCritical, issues[0].Severity)
			assert.Equal(t, tt.autoFixable, issues[0].AutoFixable)
			assert.Equal(t, tt.autoFixable, issues[0].ProposedPatch != nil)
		})
	}
}

func TestAuditContent_MissingWaitPayloadRepair(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.WaitStep("w", models.EndStepID, 60, testutil.WithoutPayload()),
	})

	issues := engine.AuditContent(workflow)
	require.Len(t, issues, 1)

	steps, _, err := ApplyPatch(workflow.Steps, issues[0].ProposedPatch)
	require.NoError(t, err)

	wait, ok := steps[0].Payload.(*models.WaitPayload)
	require.True(t, ok)
	assert.Equal(t, int64(3600), wait.DurationSeconds)
	assert.Nil(t, workflow.Steps[0].Payload, "the original steps are untouched")
}
