package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"neoflow/internal/cache"
	"neoflow/internal/domain"
	"neoflow/internal/port"
	"neoflow/internal/service"
	"neoflow/mocks"
)

func setupArchive(t *testing.T) (*testEnv, *mocks.MockObjectStorage, service.ArchiveService) {
	t.Helper()
	env := setupEnv(t)
	storage := new(mocks.MockObjectStorage)
	svc := service.NewArchiveService(env.docs, storage, service.ArchiveConfig{
		Bucket:        "archive-bucket",
		Prefix:        "/archive/",
		PresignExpiry: 600,
	})
	return env, storage, svc
}

func putKey(key string) interface{} {
	return mock.MatchedBy(func(in port.PutInput) bool { return in.Key == key })
}

func TestArchiveService_Archive_OriginalAndResult(t *testing.T) {
	env, storage, svc := setupArchive(t)
	env.cache.Set(cache.StatusKey("doc-1"), &domain.StatusSnapshot{DocumentID: "doc-1", Status: domain.StatusCompleted})
	env.api.On("Download", mock.Anything, "doc-1").Return(&domain.DownloadedFile{
		FileName:    "../报告.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4"),
	}, nil)
	env.api.On("GetResult", mock.Anything, "doc-1").Return(&domain.ExtractionResult{
		DocumentID:     "doc-1",
		DocumentType:   "检测报告",
		ExtractionData: map[string]any{"sample_name": "LED"},
		IsValidated:    true,
	}, nil)

	var stored []byte
	storage.On("Put", mock.Anything, mock.MatchedBy(func(in port.PutInput) bool {
		return in.Key == "archive/doc-1/报告.pdf" && in.Bucket == "archive-bucket" && in.ContentType == "application/pdf" && in.Size == 8
	})).Return(&port.PutOutput{}, nil).Once()
	storage.On("Put", mock.Anything, putKey("archive/doc-1/result.json")).Run(func(args mock.Arguments) {
		in := args.Get(1).(port.PutInput)
		stored, _ = io.ReadAll(in.Body)
	}).Return(&port.PutOutput{}, nil).Once()
	storage.On("GetPresignedURL", mock.Anything, "archive-bucket", "archive/doc-1/报告.pdf", int64(600)).
		Return("https://s3.example.com/signed", nil)

	res, err := svc.Archive(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, "archive/doc-1/报告.pdf", res.OriginalKey)
	assert.Equal(t, "archive/doc-1/result.json", res.ResultKey)
	assert.Equal(t, "https://s3.example.com/signed", res.URL)

	var decoded domain.ExtractionResult
	require.NoError(t, json.Unmarshal(stored, &decoded))
	assert.True(t, decoded.IsValidated)
	assert.Equal(t, "LED", decoded.ExtractionData["sample_name"])
	storage.AssertExpectations(t)
}

func TestArchiveService_Archive_OriginalOnlyWhenNotReady(t *testing.T) {
	env, storage, svc := setupArchive(t)
	env.cache.Set(cache.StatusKey("doc-1"), &domain.StatusSnapshot{DocumentID: "doc-1", Status: domain.StatusProcessing})
	env.api.On("Download", mock.Anything, "doc-1").Return(&domain.DownloadedFile{FileName: "scan.png", Content: []byte("png")}, nil)
	storage.On("Put", mock.Anything, mock.MatchedBy(func(in port.PutInput) bool {
		return in.Key == "archive/doc-1/scan.png" && in.ContentType == "application/octet-stream"
	})).Return(&port.PutOutput{}, nil).Once()
	storage.On("GetPresignedURL", mock.Anything, "archive-bucket", "archive/doc-1/scan.png", int64(600)).Return("u", nil)

	res, err := svc.Archive(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Empty(t, res.ResultKey)
	env.api.AssertNotCalled(t, "GetResult", mock.Anything, mock.Anything)
	storage.AssertNumberOfCalls(t, "Put", 1)
}

func TestArchiveService_Archive_StorageFailure(t *testing.T) {
	env, storage, svc := setupArchive(t)
	env.api.On("Download", mock.Anything, "doc-1").Return(&domain.DownloadedFile{FileName: "a.pdf", Content: []byte("x")}, nil)
	storage.On("Put", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := svc.Archive(context.Background(), "doc-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	storage.AssertNotCalled(t, "GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestArchiveService_Archive_DownloadNotFound(t *testing.T) {
	env, storage, svc := setupArchive(t)
	env.api.On("Download", mock.Anything, "gone").Return(nil, domain.ErrNotFound)

	_, err := svc.Archive(context.Background(), "gone")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestArchiveService_Archive_ResultErrorPropagates(t *testing.T) {
	docs := new(mocks.MockDocumentService)
	storage := new(mocks.MockObjectStorage)
	svc := service.NewArchiveService(docs, storage, service.ArchiveConfig{Bucket: "b"})
	docs.On("Download", mock.Anything, "doc-1").Return(&domain.DownloadedFile{FileName: "a.pdf", Content: []byte("x")}, nil)
	docs.On("Result", mock.Anything, "doc-1").Return(nil, domain.ErrUnauthorized)
	storage.On("Put", mock.Anything, putKey("doc-1/a.pdf")).Return(&port.PutOutput{}, nil)
	storage.On("Delete", mock.Anything, "b", "doc-1/a.pdf").Return(nil).Once()

	_, err := svc.Archive(context.Background(), "doc-1")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	storage.AssertNotCalled(t, "GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	storage.AssertExpectations(t)
}

func TestArchiveService_Archive_ResultPutFailureRemovesOriginal(t *testing.T) {
	env, storage, svc := setupArchive(t)
	env.cache.Set(cache.StatusKey("doc-1"), &domain.StatusSnapshot{DocumentID: "doc-1", Status: domain.StatusCompleted})
	env.api.On("Download", mock.Anything, "doc-1").Return(&domain.DownloadedFile{FileName: "a.pdf", Content: []byte("x")}, nil)
	env.api.On("GetResult", mock.Anything, "doc-1").Return(&domain.ExtractionResult{DocumentID: "doc-1"}, nil)
	storage.On("Put", mock.Anything, putKey("archive/doc-1/a.pdf")).Return(&port.PutOutput{}, nil).Once()
	storage.On("Put", mock.Anything, putKey("archive/doc-1/result.json")).Return(nil, errors.New("slow down")).Once()
	storage.On("Delete", mock.Anything, "archive-bucket", "archive/doc-1/a.pdf").Return(errors.New("access denied")).Once()

	_, err := svc.Archive(context.Background(), "doc-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
	storage.AssertExpectations(t)
	storage.AssertNotCalled(t, "GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
