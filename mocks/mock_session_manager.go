package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSessionManager is a mock implementation of port.SessionManager.
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSessionManager) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionManager) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
