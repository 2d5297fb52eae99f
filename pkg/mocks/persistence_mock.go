// Package mocks provides testify doubles for the store, audit and event bus interfaces.
package mocks

import (
	"context"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListIDs(ctx context.Context, status models.WorkflowStatus) ([]string, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Update(ctx context.Context, id string, patch *models.WorkflowPatch, expectedVersion int64) (*models.Workflow, error) {
	args := m.Called(ctx, id, patch, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

// MockAuditRepository is a mock implementation of persistence.AuditRepository interface.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) AppendHealthReport(ctx context.Context, summary *models.HealthReportSummary) error {
	args := m.Called(ctx, summary)

	return args.Error(0)
}

func (m *MockAuditRepository) AppendRepairLog(ctx context.Context, entry *models.RepairLogEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockAuditRepository) AppendDigest(ctx context.Context, digest *models.SweepDigest) error {
	args := m.Called(ctx, digest)

	return args.Error(0)
}

func (m *MockAuditRepository) ListHealthReports(ctx context.Context, workflowID string, limit int) ([]*models.HealthReportSummary, error) {
	args := m.Called(ctx, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.HealthReportSummary), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows *MockWorkflowRepository
	Audit     *MockAuditRepository
}

// NewMockPersistence returns a MockPersistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows: &MockWorkflowRepository{},
		Audit:     &MockAuditRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) AuditRepository() persistence.AuditRepository {
	return m.Audit
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
