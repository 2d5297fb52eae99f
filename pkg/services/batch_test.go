package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/mocks"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBatchAnalyze_RejectsOversizedBatch(t *testing.T) {
	store := mocks.NewMockPersistence()
	service := NewWorkflowHealth(newTestEngine(t), store)

	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("wf-%d", i)
	}

	summary, err := service.BatchAnalyze(t.Context(), BatchRequest{WorkflowIDs: ids})

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.True(t, IsValidationError(err))
	store.Workflows.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	store.Workflows.AssertNotCalled(t, "ListIDs", mock.Anything, mock.Anything)
}

func TestBatchAnalyze_AcceptsExactlyMaxBatchSize(t *testing.T) {
	service, store := newTestService(t)

	ids := make([]string, MaxBatchSize)
	for i := range ids {
		ids[i] = fmt.Sprintf("wf-%03d", i)
		seed(t, store, testutil.HealthyWorkflow(testutil.WithWorkflowID(ids[i])))
	}

	summary, err := service.BatchAnalyze(t.Context(), BatchRequest{WorkflowIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize, summary.Successful)
}

func TestBatchAnalyze_InvalidMinHealthScore(t *testing.T) {
	service, _ := newTestService(t)

	for _, score := range []int{-1, 101} {
		_, err := service.BatchAnalyze(t.Context(), BatchRequest{WorkflowIDs: []string{"wf-1"}, MinHealthScore: score})

		assert.ErrorIs(t, err, ErrInvalidHealthScore)
	}
}

func TestBatchAnalyze_MixedResults(t *testing.T) {
	service, store := newTestService(t)
	seed(t, store,
		testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-healthy")),
		zeroWaitWorkflow("wf-zero-wait"),
	)

	summary, err := service.BatchAnalyze(t.Context(), BatchRequest{
		WorkflowIDs:    []string{"wf-zero-wait", "wf-missing", "wf-healthy"},
		MinHealthScore: 90,
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, "wf-zero-wait", summary.Results[0].WorkflowID)
	assert.Equal(t, "wf-missing", summary.Results[1].WorkflowID)
	assert.Equal(t, "wf-healthy", summary.Results[2].WorkflowID)

	assert.True(t, summary.Results[0].Success)
	assert.False(t, summary.Results[1].Success)
	assert.NotEmpty(t, summary.Results[1].Error)
	assert.Nil(t, summary.Results[1].HealthReport)
	assert.True(t, summary.Results[2].Success)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 90, summary.MinHealthScore)
	assert.Equal(t, 1, summary.BelowThreshold)
	assert.Zero(t, summary.CriticalOrPoor)
	assert.InDelta(t, (85.0+100.0)/2, summary.AverageHealthScore, 1e-9)
}

func TestBatchAnalyze_DefaultsToActiveWorkflows(t *testing.T) {
	service, store := newTestService(t)
	seed(t, store,
		testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-active")),
		testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-paused"), testutil.WithStatus(models.WorkflowStatusPaused)),
		testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-draft"), testutil.WithStatus(models.WorkflowStatusDraft)),
	)

	summary, err := service.BatchAnalyze(t.Context(), BatchRequest{})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "wf-active", summary.Results[0].WorkflowID)
}

func TestBatchAnalyze_EmptyStore(t *testing.T) {
	service, _ := newTestService(t)

	summary, err := service.BatchAnalyze(t.Context(), BatchRequest{})
	require.NoError(t, err)

	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.AverageHealthScore)
	assert.Empty(t, summary.Results)
}

type blockingLatencies struct{}

func (blockingLatencies) Latencies(ctx context.Context, _ string) (map[string]time.Duration, error) {
	<-ctx.Done()

	return nil, ctx.Err()
}

// stuckLatencies never returns, whatever the context says.
type stuckLatencies struct {
	release chan struct{}
}

func (s stuckLatencies) Latencies(context.Context, string) (map[string]time.Duration, error) {
	<-s.release

	return nil, nil
}

func TestBatchAnalyze_PerWorkflowTimeout(t *testing.T) {
	t.Run("source honouring cancellation degrades", func(t *testing.T) {
		service, store := newTestService(t,
			WithLatencySource(blockingLatencies{}),
			WithConfig(Config{PerWorkflowTimeout: 20 * time.Millisecond, RecordHealth: false}),
		)
		seed(t, store, testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-1")))

		summary, err := service.BatchAnalyze(t.Context(), BatchRequest{WorkflowIDs: []string{"wf-1"}})
		require.NoError(t, err)

		require.Len(t, summary.Results, 1)
		assert.True(t, summary.Results[0].Success, "latency loss only skips slow step checks")
	})

	t.Run("stuck analysis is abandoned", func(t *testing.T) {
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		service, store := newTestService(t,
			WithLatencySource(stuckLatencies{release: release}),
			WithConfig(Config{PerWorkflowTimeout: 20 * time.Millisecond}),
		)
		seed(t, store,
			testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-1")),
			testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-2")),
		)

		started := time.Now()
		summary, err := service.BatchAnalyze(t.Context(), BatchRequest{WorkflowIDs: []string{"wf-1", "wf-2"}})
		require.NoError(t, err)

		assert.Less(t, time.Since(started), 5*time.Second)
		assert.Equal(t, 2, summary.Failed)

		for _, item := range summary.Results {
			assert.Contains(t, item.Error, ErrAnalysisTimeout.Error())
		}
	})
}

func TestSummarize(t *testing.T) {
	report := func(score int) *models.HealthReport {
		return &models.HealthReport{HealthScore: score, Status: models.StatusForScore(score)}
	}

	summary := summarize([]models.BatchItem{
		{WorkflowID: "a", Success: true, HealthReport: report(95)},
		{WorkflowID: "b", Success: true, HealthReport: report(60)},
		{WorkflowID: "c", Success: true, HealthReport: report(20)},
		{WorkflowID: "d", Error: "boom"},
	}, 70)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.BelowThreshold)
	assert.Equal(t, 2, summary.CriticalOrPoor)
	assert.InDelta(t, 175.0/3, summary.AverageHealthScore, 1e-9)
}

func TestDailySweep(t *testing.T) {
	t.Run("digest of active workflows", func(t *testing.T) {
		bus := &mocks.MockEventBus{}
		bus.On("Publish", mock.Anything, "sweep", mock.MatchedBy(func(event *events.SweepCompleted) bool {
			return event.Digest.Total == 2
		})).Return(nil).Once()

		service, store := newTestService(t, WithPublisher(bus))
		seed(t, store,
			testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-healthy")),
			zeroWaitWorkflow("wf-zero-wait"),
		)

		digest := service.DailySweep(t.Context())

		assert.NotEmpty(t, digest.ID)
		assert.Equal(t, fixedNow, digest.RanAt)
		assert.Equal(t, 2, digest.Total)
		assert.Equal(t, 2, digest.Successful)
		assert.Zero(t, digest.BelowThreshold)
		assert.Empty(t, digest.Error)
		bus.AssertExpectations(t)
	})

	t.Run("listing failure lands in the digest", func(t *testing.T) {
		store := mocks.NewMockPersistence()
		store.Workflows.On("ListIDs", mock.Anything, models.WorkflowStatusActive).Return(nil, errors.New("database is locked"))

		service := NewWorkflowHealth(newTestEngine(t), store)

		digest := service.DailySweep(t.Context())

		require.NotNil(t, digest)
		assert.Contains(t, digest.Error, "database is locked")
		assert.Zero(t, digest.Total)
	})
}
