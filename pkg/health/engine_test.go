package health

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(Config{MinWaitSeconds: 120})
	require.NoError(t, err)

	cfg := engine.Config()
	assert.Equal(t, int64(120), cfg.MinWaitSeconds)
	assert.InDelta(t, 0.9, cfg.SimilarityThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.SlowStepThreshold)
	assert.Equal(t, DefaultWeights, cfg.Weights)
	assert.Equal(t, "contact.firstName", cfg.VariableRenames["firstName"])

	for _, threshold := range []float64{1.5, -0.5, -1} {
		_, err = NewEngine(Config{SimilarityThreshold: threshold})
		assert.Error(t, err, threshold)
	}
}

func TestAnalyze_HealthyWorkflow(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-healthy"))

	report := engine.Analyze(workflow, nil, analyzedAt)

	assert.Equal(t, "wf-healthy", report.WorkflowID)
	assert.Equal(t, workflow.Version, report.WorkflowVersion)
	assert.Equal(t, 100, report.HealthScore)
	assert.Equal(t, models.HealthStatusHealthy, report.Status)
	assert.Empty(t, report.Issues.All())
	assert.NotNil(t, report.RepairPlan.Immediate)
	assert.NotNil(t, report.RepairPlan.Manual)
}

func TestAnalyze_TwoStepCycle(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.WaitStep("A", "B", 3600),
		testutil.WaitStep("B", "A", 3600),
	})

	report := engine.Analyze(workflow, nil, analyzedAt)

	require.Len(t, report.Issues.Critical, 1)
	assert.Empty(t, report.Issues.Warnings)
	assert.Empty(t, report.Issues.Suggestions)
	assert.Equal(t, models.CodeCycle, report.Issues.Critical[0].Code)
	assert.Equal(t, []string{"A", "B"}, report.Issues.Critical[0].StepIDs)
	assert.Equal(t, 85, report.HealthScore)
	assert.Equal(t, models.HealthStatusWarning, report.Status)
	assert.Empty(t, report.RepairPlan.Immediate)
	assert.Len(t, report.RepairPlan.Manual, 1)
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.EmailStep("welcome", "pause", testutil.WithContent("Hi {{firstName}} {{ balance }} {{oops")),
		testutil.WaitStep("pause", "remind", 0),
		testutil.SMSStep("remind", "again", testutil.WithContent("Letter mailed")),
		testutil.SMSStep("again", "ghost", testutil.WithContent("Letter mailed!")),
		testutil.WaitStep("pause", "loop", 60),
		testutil.WaitStep("loop", "pause", 60),
		testutil.WaitStep("", models.EndStepID, 60),
	}, testutil.WithWorkflowID("wf-messy"))
	latencies := map[string]time.Duration{"remind": time.Minute}

	first, err := json.Marshal(engine.Analyze(workflow, latencies, analyzedAt))
	require.NoError(t, err)

	for range 5 {
		again, err := json.Marshal(engine.Analyze(workflow.Clone(), latencies, analyzedAt))
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(again))
		assert.Equal(t, first, again)
	}
}

func TestAnalyze_GroupsBySeverity(t *testing.T) {
	engine := newTestEngine(t)
	workflow := testutil.CreateTestWorkflow([]*models.Step{
		testutil.SMSStep("remind", "pause", testutil.WithContent("Docs received.")),
		testutil.WaitStep("pause", models.EndStepID, 0),
	})

	report := engine.Analyze(workflow, map[string]time.Duration{"remind": 40 * time.Second}, analyzedAt)

	require.Len(t, report.Issues.Critical, 1)
	require.Len(t, report.Issues.Warnings, 1)
	require.Len(t, report.Issues.Suggestions, 1)
	assert.Equal(t, models.CodeZeroDurationWait, report.Issues.Critical[0].Code)
	assert.Equal(t, models.CodeMissingOptOut, report.Issues.Warnings[0].Code)
	assert.Equal(t, models.CodeSlowStep, report.Issues.Suggestions[0].Code)
	assert.Equal(t, 100-15-5-1, report.HealthScore)
	assert.Len(t, report.RepairPlan.Immediate, 2)
	assert.Equal(t, report.Issues.Critical[0].ID, report.RepairPlan.Immediate[0].ID)

	found := report.FindIssue(report.Issues.Warnings[0].ID)
	require.NotNil(t, found)
	assert.Equal(t, models.CodeMissingOptOut, found.Code)
	assert.Nil(t, report.FindIssue("nope"))
}
