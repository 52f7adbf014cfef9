package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"neoflow/internal/apiclient"
	"neoflow/internal/domain"
	"neoflow/internal/fakeapi"
	"neoflow/internal/port"
	"neoflow/mocks"
)

func setupClient(t *testing.T, session port.SessionManager) (*apiclient.Client, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return apiclient.New(apiclient.Config{BaseURL: srv.URL + "/", Session: session}), fake
}

func pdfFile() *domain.UploadFile {
	return &domain.UploadFile{
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		Content:     []byte(strings.Repeat("x", 64*1024)),
	}
}

func TestClient_Upload_ReportsProgressAndTemplate(t *testing.T) {
	client, fake := setupClient(t, nil)

	var mu sync.Mutex
	var seen []int
	resp, err := client.Upload(context.Background(), port.UploadInput{
		File:       pdfFile(),
		TemplateID: "tpl-1",
		OnProgress: func(p int) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, string(domain.StatusUploaded), resp.Status)

	uploads := fake.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "report.pdf", uploads[0].FileName)
	assert.Equal(t, "application/pdf", uploads[0].ContentType)
	assert.Equal(t, "tpl-1", uploads[0].TemplateID)
	assert.Equal(t, int64(64*1024), uploads[0].Size)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestClient_Upload_NilFile(t *testing.T) {
	client, _ := setupClient(t, nil)

	_, err := client.Upload(context.Background(), port.UploadInput{})
	assert.ErrorIs(t, err, domain.ErrEmptyFile)
}

func TestClient_GetStatus_NotFound(t *testing.T) {
	client, _ := setupClient(t, nil)

	_, err := client.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "文档不存在", apiErr.Detail)
}

func TestClient_List_SendsOnlySetFilters(t *testing.T) {
	client, fake := setupClient(t, nil)
	fake.Seed(domain.Document{ID: "a", Status: domain.StatusCompleted})
	fake.Seed(domain.Document{ID: "b", Status: domain.StatusFailed})
	fake.Seed(domain.Document{ID: "c", Status: domain.StatusCompleted})

	list, err := client.List(context.Background(), domain.ListFilter{Page: 1, Limit: 10, Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Items, 2)
	assert.False(t, list.HasMore)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/documents/", calls[0].Path)
	assert.Equal(t, "limit=10&page=1&status=completed", calls[0].Query)
}

func TestClient_ProcessSync(t *testing.T) {
	client, fake := setupClient(t, nil)
	fake.Seed(domain.Document{ID: "doc-1", Status: domain.StatusUploaded})
	fake.SetProcessOutcome("doc-1", domain.ProcessResponse{Status: domain.StatusFailed, ErrorMessage: "OCR timeout"})

	resp, err := client.Process(context.Background(), "doc-1", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, resp.Status)
	assert.Equal(t, "OCR timeout", resp.ErrorMessage)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sync=true", calls[0].Query)
}

func TestClient_Download_UsesContentDispositionName(t *testing.T) {
	client, _ := setupClient(t, nil)

	up, err := client.Upload(context.Background(), port.UploadInput{File: &domain.UploadFile{
		FileName:    "检测报告.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4"),
	}})
	require.NoError(t, err)

	file, err := client.Download(context.Background(), up.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "检测报告.pdf", file.FileName)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), file.Content)
}

func TestClient_RefreshesOnceAndReplaysUpload(t *testing.T) {
	session := new(mocks.MockSessionManager)
	session.On("AccessToken", mock.Anything).Return("old", nil).Once()
	session.On("AccessToken", mock.Anything).Return("new", nil)
	session.On("Refresh", mock.Anything).Return(nil).Once()
	client, fake := setupClient(t, session)
	fake.RequireToken("new")

	resp, err := client.Upload(context.Background(), port.UploadInput{File: pdfFile()})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DocumentID)

	session.AssertNumberOfCalls(t, "Refresh", 1)
	assert.Equal(t, 2, fake.CountCalls(http.MethodPost, "/documents/upload"))
	require.Len(t, fake.Uploads(), 1)
	assert.Equal(t, int64(64*1024), fake.Uploads()[0].Size)

	calls := fake.Calls()
	assert.Equal(t, "Bearer old", calls[0].Auth)
	assert.Equal(t, "Bearer new", calls[1].Auth)
	session.AssertExpectations(t)
}

func TestClient_RefreshesOnTokenDetailOn500(t *testing.T) {
	session := new(mocks.MockSessionManager)
	session.On("AccessToken", mock.Anything).Return("t", nil)
	session.On("Refresh", mock.Anything).Return(nil).Once()
	client, fake := setupClient(t, session)
	fake.Seed(domain.Document{ID: "doc-1", Status: domain.StatusProcessing})
	fake.Fail(http.MethodGet, "/documents/:id/status", http.StatusInternalServerError, "登录已过期", 1)

	snap, err := client.GetStatus(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, snap.Status)
	session.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestClient_PlainServerErrorDoesNotRefresh(t *testing.T) {
	session := new(mocks.MockSessionManager)
	session.On("AccessToken", mock.Anything).Return("t", nil)
	client, fake := setupClient(t, session)
	fake.Fail(http.MethodGet, "/tenants/me/templates", http.StatusInternalServerError, "database unavailable", 1)

	_, err := client.Templates(context.Background())
	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "database unavailable", apiErr.Detail)
	session.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestClient_RetriesAtMostOnce(t *testing.T) {
	session := new(mocks.MockSessionManager)
	session.On("AccessToken", mock.Anything).Return("old", nil).Once()
	session.On("AccessToken", mock.Anything).Return("still-wrong", nil)
	session.On("Refresh", mock.Anything).Return(nil).Once()
	client, fake := setupClient(t, session)
	fake.RequireToken("right")

	_, err := client.MergeRules(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	session.AssertNumberOfCalls(t, "Refresh", 1)
	assert.Equal(t, 2, fake.CountCalls(http.MethodGet, "/tenants/me/merge-rules"))
	session.AssertNotCalled(t, "SignOut", mock.Anything)
}

func TestClient_RefreshFailureSignsOut(t *testing.T) {
	session := new(mocks.MockSessionManager)
	session.On("AccessToken", mock.Anything).Return("old", nil)
	session.On("Refresh", mock.Anything).Return(errors.New("refresh token revoked")).Once()
	session.On("SignOut", mock.Anything).Return(nil).Once()
	client, fake := setupClient(t, session)
	fake.RequireToken("new")

	_, err := client.Delete(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	session.AssertExpectations(t)
	assert.Equal(t, 1, fake.CountCalls(http.MethodDelete, "/documents/:id"))
}

func TestClient_AbortDuringRefreshKeepsSession(t *testing.T) {
	session := new(mocks.MockSessionManager)
	session.On("AccessToken", mock.Anything).Return("old", nil)
	session.On("Refresh", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded).Once()
	client, fake := setupClient(t, session)
	fake.Seed(domain.Document{ID: "doc-1", Status: domain.StatusProcessing})
	fake.RequireToken("new")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.GetStatus(ctx, "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrSessionExpired)
	session.AssertNotCalled(t, "SignOut", mock.Anything)
	assert.Equal(t, 1, fake.CountCalls(http.MethodGet, "/documents/:id/status"))
}

func TestClient_ReviewActions(t *testing.T) {
	client, fake := setupClient(t, nil)
	fake.Seed(domain.Document{ID: "doc-1", Status: domain.StatusPendingReview})
	ctx := context.Background()

	renamed, err := client.Rename(ctx, "doc-1", "May report")
	require.NoError(t, err)
	assert.Equal(t, "May report", renamed.DisplayName)

	_, err = client.Validate(ctx, "doc-1", domain.ValidateInput{
		DocumentType: "检测报告",
		Data:         map[string]any{"sample_name": "LED"},
	})
	require.NoError(t, err)

	res, err := client.GetResult(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, res.IsValidated)
	assert.Equal(t, "LED", res.ExtractionData["sample_name"])

	doc, ok := fake.Document("doc-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Equal(t, "May report", doc.Name())

	_, err = client.Reject(ctx, "doc-1", "blurry")
	require.NoError(t, err)
	doc, _ = fake.Document("doc-1")
	assert.Equal(t, domain.StatusFailed, doc.Status)
}

func TestClient_ProcessMerge_SendsFilesInOrder(t *testing.T) {
	client, fake := setupClient(t, nil)
	files := []domain.MergeFile{
		{FilePath: "uploads/a.pdf", DocType: "检测报告"},
		{FilePath: "uploads/b.pdf", DocType: "说明书"},
	}

	resp, err := client.ProcessMerge(context.Background(), "tpl-merge", files)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DocumentID)

	merges := fake.Merges()
	require.Len(t, merges, 1)
	assert.Equal(t, "tpl-merge", merges[0].TemplateID)
	assert.Equal(t, files, merges[0].Files)
}
