// Package mocks provides testify mocks of the orchestration core's collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ycslms/lmsflow/pkg/events"
)

// MockNotifier is a mock implementation of protocol.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, recipient, message string) error {
	args := m.Called(ctx, recipient, message)

	return args.Error(0)
}

// MockOperationInvoker is a mock implementation of protocol.OperationInvoker.
type MockOperationInvoker struct {
	mock.Mock
}

func (m *MockOperationInvoker) Invoke(ctx context.Context, component, operation string, input map[string]any) (map[string]any, error) {
	args := m.Called(ctx, component, operation, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

// MockEventPublisher is a mock implementation of protocol.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, event events.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}
