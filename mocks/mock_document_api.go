package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

// MockDocumentAPI is a mock implementation of port.DocumentAPI.
type MockDocumentAPI struct {
	mock.Mock
}

func (m *MockDocumentAPI) Upload(ctx context.Context, input port.UploadInput) (*domain.UploadResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UploadResponse), args.Error(1)
}

func (m *MockDocumentAPI) Process(ctx context.Context, documentID string, sync bool) (*domain.ProcessResponse, error) {
	args := m.Called(ctx, documentID, sync)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessResponse), args.Error(1)
}

func (m *MockDocumentAPI) ProcessMerge(ctx context.Context, templateID string, files []domain.MergeFile) (*domain.ProcessResponse, error) {
	args := m.Called(ctx, templateID, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessResponse), args.Error(1)
}

func (m *MockDocumentAPI) GetStatus(ctx context.Context, documentID string) (*domain.StatusSnapshot, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusSnapshot), args.Error(1)
}

func (m *MockDocumentAPI) GetResult(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}

func (m *MockDocumentAPI) List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentList), args.Error(1)
}

func (m *MockDocumentAPI) Delete(ctx context.Context, documentID string) (*domain.DeleteResponse, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeleteResponse), args.Error(1)
}

func (m *MockDocumentAPI) Validate(ctx context.Context, documentID string, input domain.ValidateInput) (*domain.ActionResponse, error) {
	args := m.Called(ctx, documentID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResponse), args.Error(1)
}

func (m *MockDocumentAPI) Reject(ctx context.Context, documentID, reason string) (*domain.ActionResponse, error) {
	args := m.Called(ctx, documentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResponse), args.Error(1)
}

func (m *MockDocumentAPI) Rename(ctx context.Context, documentID, displayName string) (*domain.ActionResponse, error) {
	args := m.Called(ctx, documentID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResponse), args.Error(1)
}

func (m *MockDocumentAPI) Download(ctx context.Context, documentID string) (*domain.DownloadedFile, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DownloadedFile), args.Error(1)
}

func (m *MockDocumentAPI) Templates(ctx context.Context) ([]domain.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Template), args.Error(1)
}

func (m *MockDocumentAPI) MergeRules(ctx context.Context) ([]domain.MergeRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MergeRule), args.Error(1)
}
