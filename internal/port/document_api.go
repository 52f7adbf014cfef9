package port

import (
	"context"

	"neoflow/internal/domain"
)

// ProgressFunc receives upload progress as an integer percentage (0-100).
type ProgressFunc func(percent int)

// UploadInput encapsulates the parameters of a single file upload.
type UploadInput struct {
	File       *domain.UploadFile
	TemplateID string
	OnProgress ProgressFunc
}

// DocumentAPI is the HTTP boundary of the document pipeline.
type DocumentAPI interface {
	Upload(ctx context.Context, input UploadInput) (*domain.UploadResponse, error)
	Process(ctx context.Context, documentID string, sync bool) (*domain.ProcessResponse, error)
	ProcessMerge(ctx context.Context, templateID string, files []domain.MergeFile) (*domain.ProcessResponse, error)
	GetStatus(ctx context.Context, documentID string) (*domain.StatusSnapshot, error)
	GetResult(ctx context.Context, documentID string) (*domain.ExtractionResult, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error)
	Delete(ctx context.Context, documentID string) (*domain.DeleteResponse, error)
	Validate(ctx context.Context, documentID string, input domain.ValidateInput) (*domain.ActionResponse, error)
	Reject(ctx context.Context, documentID, reason string) (*domain.ActionResponse, error)
	Rename(ctx context.Context, documentID, displayName string) (*domain.ActionResponse, error)
	Download(ctx context.Context, documentID string) (*domain.DownloadedFile, error)
	Templates(ctx context.Context) ([]domain.Template, error)
	MergeRules(ctx context.Context) ([]domain.MergeRule, error)
}
