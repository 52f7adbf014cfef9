package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"neoflow/internal/cache"
	"neoflow/internal/domain"
	"neoflow/internal/port"
	"neoflow/internal/registry"
)

const (
	// ListStaleTime is how long a cached list view is served without refetching.
	ListStaleTime = 30 * time.Second
	// TenantStaleTime applies to templates and merge rules.
	TenantStaleTime = 5 * time.Minute
)

// DocumentService runs single-document operations against the API and keeps
// the shared cache and registry consistent with their outcomes.
type DocumentService interface {
	Upload(ctx context.Context, file *domain.UploadFile, templateID string) (*domain.UploadResponse, error)
	Process(ctx context.Context, documentID string, sync bool) (*domain.ProcessResponse, error)
	Delete(ctx context.Context, documentID string) error
	Validate(ctx context.Context, documentID string, input domain.ValidateInput) (*domain.ActionResponse, error)
	Reject(ctx context.Context, documentID, reason string) (*domain.ActionResponse, error)
	Rename(ctx context.Context, documentID, displayName string) (*domain.ActionResponse, error)

	List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error)
	Status(ctx context.Context, documentID string) (*domain.StatusSnapshot, error)
	Result(ctx context.Context, documentID string) (*domain.ExtractionResult, error)
	Templates(ctx context.Context) ([]domain.Template, error)
	Template(ctx context.Context, templateID string) (*domain.Template, error)
	MergeRules(ctx context.Context) ([]domain.MergeRule, error)
	Download(ctx context.Context, documentID string) (*domain.DownloadedFile, error)
}

type documentService struct {
	api    port.DocumentAPI
	cache  *cache.Cache
	reg    *registry.Registry
	policy UploadPolicy
}

// NewDocumentService creates a new DocumentService implementation.
func NewDocumentService(
	api port.DocumentAPI,
	c *cache.Cache,
	reg *registry.Registry,
	policy UploadPolicy,
) DocumentService {
	return &documentService{
		api:    api,
		cache:  c,
		reg:    reg,
		policy: policy,
	}
}

func (s *documentService) Upload(ctx context.Context, file *domain.UploadFile, templateID string) (*domain.UploadResponse, error) {
	if err := s.policy.Validate(file); err != nil {
		return nil, err
	}

	tracker := s.reg.Track(registry.NewKey("upload"))
	defer tracker.Done()

	log.Printf("documentService.Upload: uploading %s (%s, %d bytes)", file.FileName, file.ContentType, file.Size())
	resp, err := s.api.Upload(ctx, port.UploadInput{
		File:       file,
		TemplateID: templateID,
		OnProgress: tracker.Report,
	})
	if err != nil {
		log.Printf("documentService.Upload: upload of %s failed: %v", file.FileName, err)
		return nil, fmt.Errorf("uploading %s: %w", file.FileName, err)
	}
	tracker.Report(100)

	s.cache.Invalidate(cache.Lists())
	log.Printf("documentService.Upload: %s stored as document %s", file.FileName, resp.DocumentID)
	return resp, nil
}

func (s *documentService) Process(ctx context.Context, documentID string, sync bool) (*domain.ProcessResponse, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}

	s.reg.MarkProcessing(documentID)
	resp, err := s.api.Process(ctx, documentID, sync)
	if err != nil {
		s.reg.UnmarkProcessing(documentID)
		log.Printf("documentService.Process: processing %s failed: %v", documentID, err)
		return nil, fmt.Errorf("processing document %s: %w", documentID, err)
	}
	// Async entries are cleared by the status synchronizer once it observes
	// a settled status.
	if sync {
		s.reg.UnmarkProcessing(documentID)
	}

	s.cache.Invalidate(cache.Any(cache.Exact(cache.StatusKey(documentID)), cache.Lists()))
	if sync {
		if _, err := s.cache.Refetch(ctx, cache.StatusKey(documentID), s.statusFetcher(documentID)); err != nil {
			log.Printf("documentService.Process: refreshing status of %s: %v", documentID, err)
		}
	}
	log.Printf("documentService.Process: document %s accepted (sync=%t, status=%s)", documentID, sync, resp.Status)
	return resp, nil
}

// Delete removes the document from every cached list before the request is
// sent and restores the lists verbatim if it fails. Lists are marked stale on
// every outcome.
func (s *documentService) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return domain.ErrDocumentIDRequired
	}

	lists := cache.Lists()
	s.cache.Cancel(lists)
	snapshot := s.cache.Snapshot(lists)
	s.cache.Update(lists, func(_ cache.Key, old any) any {
		list, ok := old.(*domain.DocumentList)
		if !ok || list == nil {
			return old
		}
		return list.Without(documentID)
	})
	defer s.cache.Invalidate(lists)

	if _, err := s.api.Delete(ctx, documentID); err != nil {
		s.cache.Restore(snapshot)
		log.Printf("documentService.Delete: delete of %s failed, restored %d list views: %v", documentID, len(snapshot), err)
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}

	s.cache.Remove(cache.Document(documentID))
	s.reg.UnmarkProcessing(documentID)
	log.Printf("documentService.Delete: document %s deleted", documentID)
	return nil
}

func (s *documentService) Validate(ctx context.Context, documentID string, input domain.ValidateInput) (*domain.ActionResponse, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}
	input.DocumentType = strings.TrimSpace(input.DocumentType)
	if input.DocumentType == "" {
		return nil, domain.ErrDocumentTypeRequired
	}
	if input.Data == nil {
		input.Data = map[string]any{}
	}

	resp, err := s.api.Validate(ctx, documentID, input)
	if err != nil {
		return nil, fmt.Errorf("validating document %s: %w", documentID, err)
	}
	s.cache.Invalidate(cache.Any(cache.Exact(cache.ResultKey(documentID)), cache.Lists()))
	return resp, nil
}

func (s *documentService) Reject(ctx context.Context, documentID, reason string) (*domain.ActionResponse, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrReasonRequired
	}

	resp, err := s.api.Reject(ctx, documentID, reason)
	if err != nil {
		return nil, fmt.Errorf("rejecting document %s: %w", documentID, err)
	}
	s.cache.Invalidate(cache.Any(cache.Exact(cache.StatusKey(documentID)), cache.Lists()))
	return resp, nil
}

func (s *documentService) Rename(ctx context.Context, documentID, displayName string) (*domain.ActionResponse, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, domain.ErrDisplayNameRequired
	}

	resp, err := s.api.Rename(ctx, documentID, name)
	if err != nil {
		return nil, fmt.Errorf("renaming document %s: %w", documentID, err)
	}
	s.cache.Invalidate(cache.Any(cache.Exact(cache.StatusKey(documentID)), cache.Lists()))
	return resp, nil
}

func (s *documentService) List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error) {
	v, err := s.cache.Fetch(ctx, cache.ListKey(filter), ListStaleTime, func(ctx context.Context) (any, error) {
		return s.api.List(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return v.(*domain.DocumentList), nil
}

func (s *documentService) statusFetcher(documentID string) cache.FetchFunc {
	return func(ctx context.Context) (any, error) {
		return s.api.GetStatus(ctx, documentID)
	}
}

func (s *documentService) Status(ctx context.Context, documentID string) (*domain.StatusSnapshot, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}
	v, err := s.cache.Fetch(ctx, cache.StatusKey(documentID), cache.NoExpiry, s.statusFetcher(documentID))
	if err != nil {
		return nil, fmt.Errorf("fetching status of %s: %w", documentID, err)
	}
	return v.(*domain.StatusSnapshot), nil
}

// Result is available once the document reaches pending_review or
// completed. It is fetched once and served from cache until invalidated.
func (s *documentService) Result(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	status, err := s.Status(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !status.Status.HasResult() {
		return nil, fmt.Errorf("document %s is %s: %w", documentID, status.Status, domain.ErrResultNotReady)
	}

	v, err := s.cache.Fetch(ctx, cache.ResultKey(documentID), cache.NoExpiry, func(ctx context.Context) (any, error) {
		return s.api.GetResult(ctx, documentID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching result of %s: %w", documentID, err)
	}
	return v.(*domain.ExtractionResult), nil
}

func (s *documentService) Templates(ctx context.Context) ([]domain.Template, error) {
	v, err := s.cache.Fetch(ctx, cache.TemplatesKey(), TenantStaleTime, func(ctx context.Context) (any, error) {
		return s.api.Templates(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching templates: %w", err)
	}
	return v.([]domain.Template), nil
}

// Template looks a template up by id or code.
func (s *documentService) Template(ctx context.Context, templateID string) (*domain.Template, error) {
	templates, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == templateID || templates[i].Code == templateID {
			t := templates[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("template %s: %w", templateID, domain.ErrNotFound)
}

func (s *documentService) MergeRules(ctx context.Context) ([]domain.MergeRule, error) {
	v, err := s.cache.Fetch(ctx, cache.MergeRulesKey(), TenantStaleTime, func(ctx context.Context) (any, error) {
		return s.api.MergeRules(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching merge rules: %w", err)
	}
	return v.([]domain.MergeRule), nil
}

func (s *documentService) Download(ctx context.Context, documentID string) (*domain.DownloadedFile, error) {
	if documentID == "" {
		return nil, domain.ErrDocumentIDRequired
	}
	f, err := s.api.Download(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("downloading document %s: %w", documentID, err)
	}
	return f, nil
}

// IsCanceled reports whether err came from a fetch abandoned by cache
// cancellation rather than a failed request.
func IsCanceled(err error) bool {
	return errors.Is(err, cache.ErrFetchCanceled) || errors.Is(err, context.Canceled)
}
