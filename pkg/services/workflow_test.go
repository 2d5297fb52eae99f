package services

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/health"
	"github.com/creditflow/workflowdoctor/pkg/mocks"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence/file"
	"github.com/creditflow/workflowdoctor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *health.Engine {
	t.Helper()

	engine, err := health.NewEngine(health.Config{})
	require.NoError(t, err)

	return engine
}

func newTestService(t *testing.T, opts ...Option) (*WorkflowHealth, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	opts = append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	return NewWorkflowHealth(newTestEngine(t), store, opts...), store
}

func seed(t *testing.T, store *file.Persistence, workflows ...*models.Workflow) {
	t.Helper()

	for _, workflow := range workflows {
		require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))
	}
}

func TestWorkflowHealth_HealthCheck(t *testing.T) {
	service, _ := newTestService(t)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	store := mocks.NewMockPersistence()
	store.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	message, ok = NewWorkflowHealth(newTestEngine(t), store).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "connection refused")
}

func TestWorkflowHealth_FetchByID(t *testing.T) {
	service, store := newTestService(t)
	seed(t, store, testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-1")))

	workflow, err := service.FetchByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", workflow.ID)

	_, err = service.FetchByID(t.Context(), "")
	assert.ErrorIs(t, err, ErrWorkflowIDRequired)
	assert.True(t, IsValidationError(err))

	_, err = service.FetchByID(t.Context(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestWorkflowHealth_Import(t *testing.T) {
	service, store := newTestService(t)

	t.Run("defaults to draft", func(t *testing.T) {
		workflow := testutil.HealthyWorkflow(testutil.WithWorkflowID("wf-import"), testutil.WithStatus(""))

		saved, err := service.Import(t.Context(), workflow)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusDraft, saved.Status)

		stored, err := store.WorkflowRepository().GetByID(t.Context(), "wf-import")
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusDraft, stored.Status)
	})

	tests := []struct {
		name     string
		workflow *models.Workflow
	}{
		{name: "nil", workflow: nil},
		{name: "missing id", workflow: testutil.HealthyWorkflow(testutil.WithWorkflowID(""))},
		{name: "unknown status", workflow: testutil.HealthyWorkflow(testutil.WithStatus("deleted"))},
		{name: "path traversal id", workflow: testutil.HealthyWorkflow(testutil.WithWorkflowID("../etc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Import(t.Context(), tt.workflow)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestWorkflowHealth_HealthHistory(t *testing.T) {
	service, store := newTestService(t, WithConfig(Config{HistoryLimit: 2}))
	audit := store.AuditRepository()

	for i := range 3 {
		require.NoError(t, audit.AppendHealthReport(t.Context(), &models.HealthReportSummary{
			ID:          string(rune('a' + i)),
			WorkflowID:  "wf-1",
			HealthScore: 90 + i,
			RecordedAt:  fixedNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	history, err := service.HealthHistory(t.Context(), "wf-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 92, history[0].HealthScore)

	history, err = service.HealthHistory(t.Context(), "wf-1", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = service.HealthHistory(t.Context(), "", 10)
	assert.ErrorIs(t, err, ErrWorkflowIDRequired)
}

func TestWithConfig_KeepsDefaultsForZeroFields(t *testing.T) {
	service := NewWorkflowHealth(nil, nil, WithConfig(Config{BatchConcurrency: 2, SweepMinHealthScore: 150}))

	assert.Equal(t, 2, service.config.BatchConcurrency)
	assert.Equal(t, 30*time.Second, service.config.PerWorkflowTimeout)
	assert.Equal(t, 50, service.config.HistoryLimit)
	assert.Equal(t, 70, service.config.SweepMinHealthScore)
	assert.False(t, service.config.RecordHealth)
}
