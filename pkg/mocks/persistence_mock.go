package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) SaveInstance(ctx context.Context, inst *models.WorkflowInstance) error {
	args := m.Called(ctx, inst)

	return args.Error(0)
}

func (m *MockPersistence) InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockPersistence) Instances(ctx context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

func (m *MockPersistence) SaveTask(ctx context.Context, task *models.WorkflowTask) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockPersistence) TaskByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowTask), args.Error(1)
}

func (m *MockPersistence) Tasks(ctx context.Context, filter persistence.TaskFilter) ([]*models.WorkflowTask, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowTask), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
