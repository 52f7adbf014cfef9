package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

// ArchiveConfig names the archive bucket and key layout.
type ArchiveConfig struct {
	Bucket        string
	Prefix        string
	PresignExpiry int64
}

// ArchiveResult lists what was stored for one document.
type ArchiveResult struct {
	DocumentID  string
	OriginalKey string
	ResultKey   string
	URL         string
}

// ArchiveService copies a document's original file and, when available, its
// extraction result into object storage.
type ArchiveService interface {
	Archive(ctx context.Context, documentID string) (*ArchiveResult, error)
}

type archiveService struct {
	docs    DocumentService
	storage port.ObjectStorage
	cfg     ArchiveConfig
}

// NewArchiveService creates a new ArchiveService implementation.
func NewArchiveService(docs DocumentService, storage port.ObjectStorage, cfg ArchiveConfig) ArchiveService {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 3600
	}
	return &archiveService{docs: docs, storage: storage, cfg: cfg}
}

func (s *archiveService) Archive(ctx context.Context, documentID string) (*ArchiveResult, error) {
	file, err := s.docs.Download(ctx, documentID)
	if err != nil {
		return nil, err
	}

	base := path.Join(strings.Trim(s.cfg.Prefix, "/"), documentID)
	out := &ArchiveResult{DocumentID: documentID, OriginalKey: path.Join(base, safeObjectName(file.FileName))}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.storage.Put(ctx, port.PutInput{
		Bucket:      s.cfg.Bucket,
		Key:         out.OriginalKey,
		Body:        bytes.NewReader(file.Content),
		ContentType: contentType,
		Size:        int64(len(file.Content)),
	}); err != nil {
		log.Printf("archiveService.Archive: storing original of %s failed: %v", documentID, err)
		return nil, fmt.Errorf("archiving original of %s: %w", documentID, err)
	}

	result, err := s.docs.Result(ctx, documentID)
	switch {
	case errors.Is(err, domain.ErrResultNotReady):
		log.Printf("archiveService.Archive: %s has no result yet, archiving original only", documentID)
	case err != nil:
		s.discard(ctx, out.OriginalKey)
		return nil, err
	default:
		body, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			s.discard(ctx, out.OriginalKey)
			return nil, fmt.Errorf("marshaling result of %s: %w", documentID, err)
		}
		out.ResultKey = path.Join(base, "result.json")
		if _, err := s.storage.Put(ctx, port.PutInput{
			Bucket:      s.cfg.Bucket,
			Key:         out.ResultKey,
			Body:        bytes.NewReader(body),
			ContentType: "application/json",
			Size:        int64(len(body)),
		}); err != nil {
			s.discard(ctx, out.OriginalKey)
			return nil, fmt.Errorf("archiving result of %s: %w", documentID, err)
		}
	}

	out.URL, err = s.storage.GetPresignedURL(ctx, s.cfg.Bucket, out.OriginalKey, s.cfg.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presigning archive of %s: %w", documentID, err)
	}
	log.Printf("archiveService.Archive: archived %s to %s/%s", documentID, s.cfg.Bucket, out.OriginalKey)
	return out, nil
}

// discard removes an original stored by an archive that did not complete, so a
// retry does not leave a half-written prefix behind.
func (s *archiveService) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), s.cfg.Bucket, key); err != nil {
		log.Printf("archiveService.Archive: removing partial archive %s failed: %v", key, err)
	}
}

func safeObjectName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
