package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/health"
	"github.com/creditflow/workflowdoctor/pkg/mocks"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	"github.com/creditflow/workflowdoctor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func zeroWaitWorkflow(id string) *models.Workflow {
	return testutil.CreateTestWorkflow([]*models.Step{
		testutil.EmailStep("welcome", "pause"),
		testutil.WaitStep("pause", models.EndStepID, 0),
	}, testutil.WithWorkflowID(id))
}

func TestRepairWorkflow_ZeroDurationWait(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-1", mock.MatchedBy(func(event *events.RepairCompleted) bool {
		return event.Entry.FixedCount == 1 && event.Entry.FailedCount == 0
	})).Return(nil).Once()

	service, store := newTestService(t, WithPublisher(bus))
	seed(t, store, zeroWaitWorkflow("wf-1"))

	result, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true})
	require.NoError(t, err)

	require.Len(t, result.Fixed, 1)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, models.PatchOpSetField, result.Fixed[0].PatchApplied.Ops[0].Kind)

	stored, err := store.WorkflowRepository().GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), stored.Steps[1].Payload.(*models.WaitPayload).DurationSeconds)
	assert.Equal(t, 1, stored.TotalRepairsMade)
	assert.NotNil(t, stored.LastRepairDate)
	assert.NotNil(t, stored.LastHealthCheckDate)
	assert.Equal(t, 100, stored.HealthScore)
	assert.Equal(t, models.HealthStatusHealthy, stored.HealthStatus)
	assert.Equal(t, int64(2), stored.Version)
	bus.AssertExpectations(t)
}

func TestRepairWorkflow_SMSOptOutPassesReanalysis(t *testing.T) {
	service, store := newTestService(t, WithConfig(Config{RecordHealth: false}))
	seed(t, store, testutil.CreateTestWorkflow([]*models.Step{
		testutil.SMSStep("remind", models.EndStepID, testutil.WithContent("Your dispute letter went out today.")),
	}, testutil.WithWorkflowID("wf-sms")))

	report, err := service.AnalyzeWorkflowHealth(t.Context(), "wf-sms")
	require.NoError(t, err)
	require.Len(t, report.Issues.Warnings, 1)
	optOut := report.Issues.Warnings[0]
	assert.Equal(t, models.CodeMissingOptOut, optOut.Code)

	result, err := service.RepairWorkflow(t.Context(), "wf-sms", RepairRequest{AutoFix: true, IssueIDs: []string{optOut.ID}})
	require.NoError(t, err)
	require.Len(t, result.Fixed, 1)
	assert.Equal(t, optOut.ID, result.Fixed[0].IssueID)

	stored, err := store.WorkflowRepository().GetByID(t.Context(), "wf-sms")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Steps[0].Payload.(*models.SMSPayload).Content, "Reply STOP to opt out."))

	again, err := service.AnalyzeWorkflowHealth(t.Context(), "wf-sms")
	require.NoError(t, err)
	assert.Empty(t, again.Issues.Warnings)
	assert.Equal(t, 100, again.HealthScore)
}

func TestRepairWorkflow_NothingToWrite(t *testing.T) {
	tests := []struct {
		name   string
		steps  []*models.Step
		req    RepairRequest
		reason string
	}{
		{
			name: "differing duplicates need review",
			steps: []*models.Step{
				testutil.SMSStep("step1", models.EndStepID),
				testutil.SMSStep("step1", models.EndStepID, testutil.WithContent("Score update ready. Reply STOP to opt out.")),
			},
			req:    RepairRequest{AutoFix: true},
			reason: health.ReasonManualReview,
		},
		{
			name: "auto fix disabled",
			steps: []*models.Step{
				testutil.WaitStep("pause", models.EndStepID, 0),
			},
			req:    RepairRequest{AutoFix: false},
			reason: health.ReasonAutoFixDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestService(t)
			seed(t, store, testutil.CreateTestWorkflow(tt.steps, testutil.WithWorkflowID("wf-1")))

			result, err := service.RepairWorkflow(t.Context(), "wf-1", tt.req)
			require.NoError(t, err)

			assert.Empty(t, result.Fixed)
			require.NotEmpty(t, result.Skipped)
			for _, skipped := range result.Skipped {
				assert.Equal(t, tt.reason, skipped.Reason)
			}

			stored, err := store.WorkflowRepository().GetByID(t.Context(), "wf-1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), stored.Version, "no write without a fix")
			assert.Zero(t, stored.TotalRepairsMade)
			assert.Nil(t, stored.LastRepairDate)
		})
	}
}

func TestRepairWorkflow_UnknownIssueIDs(t *testing.T) {
	service, store := newTestService(t)
	seed(t, store, zeroWaitWorkflow("wf-1"))

	_, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true, IssueIDs: []string{"not-an-issue"}})

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrUnknownIssueIDs)
	assert.ErrorIs(t, err, health.ErrUnknownIssueIDs)
	assert.Contains(t, err.Error(), "not-an-issue")
}

func TestRepairWorkflow_IsIdempotent(t *testing.T) {
	service, store := newTestService(t)
	seed(t, store, zeroWaitWorkflow("wf-1"))

	first, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true})
	require.NoError(t, err)
	require.Len(t, first.Fixed, 1)

	second, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true})
	require.NoError(t, err)
	assert.Empty(t, second.Fixed)
	assert.Empty(t, second.Failed)

	stored, err := store.WorkflowRepository().GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalRepairsMade)
	assert.Equal(t, int64(2), stored.Version)
}

func TestRepairWorkflow_NotFound(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.RepairWorkflow(t.Context(), "missing", RepairRequest{AutoFix: true})

	assert.True(t, IsNotFound(err))
}

// barrierRepository holds every reader until all of them have loaded the workflow, so their writes race.
type barrierRepository struct {
	persistence.WorkflowRepository

	readers *sync.WaitGroup
}

func (r *barrierRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := r.WorkflowRepository.GetByID(ctx, id)

	r.readers.Done()
	r.readers.Wait()

	return workflow, err
}

type barrierPersistence struct {
	persistence.Persistence

	workflows *barrierRepository
}

func (p *barrierPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func TestRepairWorkflow_ConcurrentRepairsFirstWriteWins(t *testing.T) {
	_, store := newTestService(t)
	seed(t, store, zeroWaitWorkflow("wf-1"))

	readers := &sync.WaitGroup{}
	readers.Add(2)

	racing := &barrierPersistence{
		Persistence: store,
		workflows:   &barrierRepository{WorkflowRepository: store.WorkflowRepository(), readers: readers},
	}
	service := NewWorkflowHealth(newTestEngine(t), racing, WithConfig(Config{RecordHealth: false}))

	results := make([]*models.RepairResult, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true})
			assert.NoError(t, err)

			results[i] = result
		}()
	}

	wg.Wait()

	fixed, stale := 0, 0

	for _, result := range results {
		require.NotNil(t, result)

		fixed += len(result.Fixed)

		for _, failed := range result.Failed {
			assert.Equal(t, ReasonStaleWorkflow, failed.Error)
			stale++
		}
	}

	assert.Equal(t, 1, fixed)
	assert.Equal(t, 1, stale)

	stored, err := store.WorkflowRepository().GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, 1, stored.TotalRepairsMade)
	assert.Equal(t, int64(3600), stored.Steps[1].Payload.(*models.WaitPayload).DurationSeconds)
}

func TestRepairWorkflow_WriteErrors(t *testing.T) {
	t.Run("version conflict discards fixes", func(t *testing.T) {
		store := mocks.NewMockPersistence()
		store.Workflows.On("GetByID", mock.Anything, "wf-1").Return(zeroWaitWorkflow("wf-1"), nil)
		store.Workflows.On("Update", mock.Anything, "wf-1", mock.Anything, int64(1)).
			Return(nil, persistence.NewVersionConflictError("Update", "wf-1", 1, 2))

		service := NewWorkflowHealth(newTestEngine(t), store)

		result, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true})
		require.NoError(t, err)

		assert.Empty(t, result.Fixed)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, ReasonStaleWorkflow, result.Failed[0].Error)
		assert.Contains(t, result.Log[len(result.Log)-1], ReasonStaleWorkflow)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		store := mocks.NewMockPersistence()
		store.Workflows.On("GetByID", mock.Anything, "wf-1").Return(zeroWaitWorkflow("wf-1"), nil)
		store.Workflows.On("Update", mock.Anything, "wf-1", mock.Anything, int64(1)).
			Return(nil, errors.New("connection reset"))

		service := NewWorkflowHealth(newTestEngine(t), store)

		_, err := service.RepairWorkflow(t.Context(), "wf-1", RepairRequest{AutoFix: true})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.False(t, IsValidationError(err))
	})
}
