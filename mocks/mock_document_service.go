package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"neoflow/internal/domain"
)

// MockDocumentService is a mock implementation of service.DocumentService.
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, file *domain.UploadFile, templateID string) (*domain.UploadResponse, error) {
	args := m.Called(ctx, file, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UploadResponse), args.Error(1)
}

func (m *MockDocumentService) Process(ctx context.Context, documentID string, sync bool) (*domain.ProcessResponse, error) {
	args := m.Called(ctx, documentID, sync)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessResponse), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockDocumentService) Validate(ctx context.Context, documentID string, input domain.ValidateInput) (*domain.ActionResponse, error) {
	args := m.Called(ctx, documentID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResponse), args.Error(1)
}

func (m *MockDocumentService) Reject(ctx context.Context, documentID, reason string) (*domain.ActionResponse, error) {
	args := m.Called(ctx, documentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResponse), args.Error(1)
}

func (m *MockDocumentService) Rename(ctx context.Context, documentID, displayName string) (*domain.ActionResponse, error) {
	args := m.Called(ctx, documentID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActionResponse), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentList), args.Error(1)
}

func (m *MockDocumentService) Status(ctx context.Context, documentID string) (*domain.StatusSnapshot, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusSnapshot), args.Error(1)
}

func (m *MockDocumentService) Result(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}

func (m *MockDocumentService) Templates(ctx context.Context) ([]domain.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Template), args.Error(1)
}

func (m *MockDocumentService) Template(ctx context.Context, templateID string) (*domain.Template, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

func (m *MockDocumentService) MergeRules(ctx context.Context) ([]domain.MergeRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MergeRule), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, documentID string) (*domain.DownloadedFile, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DownloadedFile), args.Error(1)
}
