package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/creditflow/workflowdoctor/pkg/channels/gochannel"
	"github.com/creditflow/workflowdoctor/pkg/eventbus"
	"github.com/creditflow/workflowdoctor/pkg/events"
	"github.com/creditflow/workflowdoctor/pkg/mocks"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func TestRecorder_PersistsPublishedEvents(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(discard))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, discard)
	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, NewRecorder(store.AuditRepository(), discard).Register(bus))
	require.NoError(t, bus.Subscribe(t.Context()))

	report := &models.HealthReport{
		WorkflowID:      "wf-1",
		WorkflowVersion: 3,
		HealthScore:     85,
		Status:          models.HealthStatusWarning,
		AnalyzedAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.Publish(t.Context(), "wf-1", events.NewHealthReportGenerated(report)))
	require.NoError(t, bus.Publish(t.Context(), "wf-1", events.NewRepairCompleted(models.NewRepairResult("wf-1"))))
	require.NoError(t, bus.Publish(t.Context(), "sweep", events.NewSweepCompleted(&models.SweepDigest{Total: 1})))

	require.Eventually(t, func() bool {
		history, err := store.AuditRepository().ListHealthReports(t.Context(), "wf-1", 0)

		return err == nil && len(history) == 1
	}, 5*time.Second, 10*time.Millisecond)

	history, err := store.AuditRepository().ListHealthReports(t.Context(), "wf-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 85, history[0].HealthScore)
	assert.Equal(t, int64(3), history[0].WorkflowVersion)
}

func TestRecorder_Register(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.HealthReportGeneratedEvent, mock.Anything).Return(nil)
	bus.On("Handle", events.RepairCompletedEvent, mock.Anything).Return(nil)
	bus.On("Handle", events.SweepCompletedEvent, mock.Anything).Return(errors.New("closed"))

	err := NewRecorder(mocks.NewMockPersistence().Audit, discard).Register(bus)

	require.Error(t, err)
	assert.Contains(t, err.Error(), string(events.SweepCompletedEvent))
}

func TestRecorder_Handlers(t *testing.T) {
	summary := &models.HealthReportSummary{ID: "r-1", WorkflowID: "wf-1"}
	entry := &models.RepairLogEntry{ID: "l-1", WorkflowID: "wf-1"}
	digest := &models.SweepDigest{ID: "d-1"}

	tests := []struct {
		name   string
		handle func(r *Recorder, ctx context.Context, event any) error
		event  any
		method string
		arg    any
	}{
		{
			name:   "health report",
			handle: (*Recorder).handleHealthReport,
			event:  &events.HealthReportGenerated{Summary: summary},
			method: "AppendHealthReport",
			arg:    summary,
		},
		{
			name:   "repair log",
			handle: (*Recorder).handleRepairCompleted,
			event:  &events.RepairCompleted{Entry: entry},
			method: "AppendRepairLog",
			arg:    entry,
		},
		{
			name:   "sweep digest",
			handle: (*Recorder).handleSweepCompleted,
			event:  &events.SweepCompleted{Digest: digest},
			method: "AppendDigest",
			arg:    digest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repository := &mocks.MockAuditRepository{}
			repository.On(tt.method, mock.Anything, tt.arg).Return(nil).Once()
			recorder := NewRecorder(repository, discard)

			require.NoError(t, tt.handle(recorder, t.Context(), tt.event))
			repository.AssertExpectations(t)

			assert.Error(t, tt.handle(recorder, t.Context(), "not an event"))
		})

		t.Run(tt.name+" store failure", func(t *testing.T) {
			repository := &mocks.MockAuditRepository{}
			repository.On(tt.method, mock.Anything, tt.arg).Return(errors.New("disk full"))

			err := tt.handle(NewRecorder(repository, discard), t.Context(), tt.event)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "disk full")
		})
	}
}
